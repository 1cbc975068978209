package reset

import (
	"context"
	"fmt"
	"log"
	"time"

	"heritagebites/internal/account"
	"heritagebites/internal/auth"
	"heritagebites/internal/clock"
	"heritagebites/internal/i18n"
)

const (
	otpTTL          = 10 * time.Minute
	otpValidMinutes = 10
	tokenTTL        = 15 * time.Minute
	tokenBytes      = 32
)

// Store is the slice of the account store the reset flow touches. OTP and
// reset token parameters are digests; the store never sees raw secrets.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*account.User, error)
	FindByResetToken(ctx context.Context, hashedToken string) (*account.User, error)
	SetOTP(ctx context.Context, email, hashedCode string, expires time.Time) error
	ConsumeOTP(ctx context.Context, email, hashedCode string, now time.Time, hashedToken string, tokenExpires time.Time) (bool, error)
	AdminSetCredential(ctx context.Context, userID, passwordHash string) error
	ClearResetToken(ctx context.Context, userID string) error
}

type Dispatcher interface {
	SendAsync(operation, to, subject, text, html string)
}

// Service implements the three stages of the password-reset flow. All
// state lives on the account row; the service itself is stateless.
type Service struct {
	Store   Store
	Mail    Dispatcher
	Hasher  auth.PasswordHasher
	Clock   clock.Clock
	AppName string
}

func NewService(store Store, mail Dispatcher, hasher auth.PasswordHasher, clk clock.Clock, appName string) *Service {
	return &Service{
		Store:   store,
		Mail:    mail,
		Hasher:  hasher,
		Clock:   clk,
		AppName: appName,
	}
}

// IssueOTP generates a fresh code for the account, persists its digest
// with a 10 minute expiry, and dispatches the code by email without
// blocking on delivery. A new code supersedes any prior code and voids
// any outstanding reset token.
func (s *Service) IssueOTP(ctx context.Context, email, locale string) error {
	user, err := s.Store.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	code, err := randomSixDigitCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	expires := s.Clock.Now().Add(otpTTL)

	if err := s.Store.SetOTP(ctx, user.Email, auth.HashString(code), expires); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	content := i18n.OTPEmail(locale, s.AppName, code, otpValidMinutes)
	s.Mail.SendAsync("send-otp", user.Email, content.Subject, content.Text, content.HTML)

	return nil
}

// VerifyOTP exchanges a valid, unexpired code for a single reset token.
// The exchange is one conditional update: if a concurrent verification
// already consumed the code, this call reports the code as invalid
// instead of minting a second token.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	user, err := s.Store.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	hashedCode := auth.HashString(code)
	if user.OTP == nil || *user.OTP != hashedCode {
		return "", ErrInvalidCode
	}

	now := s.Clock.Now()
	if user.OTPExpiry == nil || now.After(*user.OTPExpiry) {
		return "", ErrCodeExpired
	}

	token, err := randomToken(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	ok, err := s.Store.ConsumeOTP(ctx, user.Email, hashedCode, now, auth.HashString(token), now.Add(tokenTTL))
	if err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		// The code was consumed or replaced between read and update.
		return "", ErrInvalidCode
	}

	return token, nil
}

// ResetPassword consumes a valid reset token and overwrites the account
// credential through the privileged store path. A token whose expiry is
// missing is treated as expired.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.Store.FindByResetToken(ctx, auth.HashString(token))
	if err != nil {
		return fmt.Errorf("lookup token: %w", err)
	}
	if user == nil {
		return ErrInvalidToken
	}

	now := s.Clock.Now()
	if user.ResetTokenExpiry == nil || now.After(*user.ResetTokenExpiry) {
		return ErrTokenExpired
	}

	hashed, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.AdminSetCredential(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	// The token is time-bounded either way, so a failed clear is not fatal.
	if err := s.Store.ClearResetToken(ctx, user.ID); err != nil {
		log.Printf("reset-password: clear token failed for user %s: %v", user.ID, err)
	}

	return nil
}
