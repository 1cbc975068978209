package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	Redis *redis.Client
}

const (
	issueMaxAttempts  = 5
	issueAttemptTTL   = 15 * time.Minute
	verifyMaxAttempts = 5
	verifyAttemptTTL  = 10 * time.Minute
	emailCooldown     = 60 * time.Second
	EmailCooldown     = emailCooldown
)

func (r *RateLimiter) issueAttemptEmailKey(email string) string {
	if email == "" {
		return ""
	}
	return "otp_issue_attempts:" + strings.ToLower(email)
}

func (r *RateLimiter) issueAttemptIPKey(ip string) string {
	if ip == "" {
		return ""
	}
	return "otp_issue_attempts_ip:" + ip
}

func (r *RateLimiter) verifyAttemptKey(email string) string {
	return "otp_verify_attempts:" + strings.ToLower(email)
}

func (r *RateLimiter) cooldownKey(email string) string {
	return "otp_email_cooldown:" + strings.ToLower(email)
}

// RegisterIssueAttempt counts OTP issuance per email and per client IP.
// Returns locked=true with the remaining TTL once either counter trips.
func (r *RateLimiter) RegisterIssueAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	keys := []string{r.issueAttemptEmailKey(email), r.issueAttemptIPKey(ip)}
	locked := false
	var ttlMax time.Duration

	for _, key := range keys {
		if key == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, key, issueAttemptTTL)
		}
		if attempts >= issueMaxAttempts {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}

// RegisterVerifyAttempt counts code-guessing attempts per email.
func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, email string) (bool, time.Duration, error) {
	key := r.verifyAttemptKey(email)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, verifyAttemptTTL)
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return attempts >= verifyMaxAttempts, ttl, nil
}

// ResetVerify clears the guess counter after a successful verification.
func (r *RateLimiter) ResetVerify(ctx context.Context, email string) {
	r.Redis.Del(ctx, r.verifyAttemptKey(email))
}

func (r *RateLimiter) CooldownTTL(ctx context.Context, email string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, r.cooldownKey(email)).Result()
	if err != nil {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetCooldown(ctx context.Context, email string, ttl time.Duration) {
	r.Redis.Set(ctx, r.cooldownKey(email), "1", ttl)
}
