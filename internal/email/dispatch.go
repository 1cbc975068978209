package email

import (
	"context"
	"log"
	"time"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Dispatcher decouples delivery from the request path. Sends run in a
// supervised goroutine on a fresh context so a slow provider cannot hang
// the caller; failures are logged with the operation name for alerting.
type Dispatcher struct {
	Mailer  Mailer
	Timeout time.Duration
}

func NewDispatcher(m Mailer) *Dispatcher {
	return &Dispatcher{Mailer: m, Timeout: 30 * time.Second}
}

func (d *Dispatcher) SendAsync(operation, to, subject, text, html string) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("email %s: panic in send goroutine for %s: %v", operation, to, rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()

		if err := d.Mailer.Send(ctx, to, subject, text, html); err != nil {
			log.Printf("email %s: send failed for %s: %v", operation, to, err)
		}
	}()
}
