package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"heritagebites/internal/account"
	"heritagebites/internal/auth"
	"heritagebites/internal/config"
	"heritagebites/internal/reset"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type recordingMail struct {
	texts []string
}

func (m *recordingMail) SendAsync(_, _, _, text, _ string) {
	m.texts = append(m.texts, text)
}

type stubStore struct {
	user      *account.User
	setOTPErr error
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*account.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

func (s *stubStore) FindByResetToken(_ context.Context, hashedToken string) (*account.User, error) {
	if s.user == nil || s.user.ResetToken == nil || *s.user.ResetToken != hashedToken {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

func (s *stubStore) SetOTP(_ context.Context, email, hashedCode string, expires time.Time) error {
	if s.setOTPErr != nil {
		return s.setOTPErr
	}
	s.user.OTP = &hashedCode
	s.user.OTPExpiry = &expires
	s.user.ResetToken = nil
	s.user.ResetTokenExpiry = nil
	return nil
}

func (s *stubStore) ConsumeOTP(_ context.Context, email, hashedCode string, now time.Time, hashedToken string, tokenExpires time.Time) (bool, error) {
	u := s.user
	if u == nil || u.Email != email || u.OTP == nil || *u.OTP != hashedCode {
		return false, nil
	}
	if u.OTPExpiry == nil || !u.OTPExpiry.After(now) {
		return false, nil
	}
	u.ResetToken = &hashedToken
	u.ResetTokenExpiry = &tokenExpires
	u.OTP = nil
	u.OTPExpiry = nil
	return true, nil
}

func (s *stubStore) AdminSetCredential(_ context.Context, userID, passwordHash string) error {
	s.user.PasswordHash = &passwordHash
	return nil
}

func (s *stubStore) ClearResetToken(_ context.Context, userID string) error {
	s.user.ResetToken = nil
	s.user.ResetTokenExpiry = nil
	return nil
}

type stubLimiter struct {
	cooldown     time.Duration
	issueLocked  bool
	verifyLocked bool

	cooldownsSet []string
	verifyResets []string
}

func (l *stubLimiter) RegisterIssueAttempt(_ context.Context, email, ip string) (bool, time.Duration, error) {
	return l.issueLocked, 5 * time.Minute, nil
}

func (l *stubLimiter) RegisterVerifyAttempt(_ context.Context, email string) (bool, time.Duration, error) {
	return l.verifyLocked, 5 * time.Minute, nil
}

func (l *stubLimiter) ResetVerify(_ context.Context, email string) {
	l.verifyResets = append(l.verifyResets, email)
}

func (l *stubLimiter) CooldownTTL(_ context.Context, email string) time.Duration {
	return l.cooldown
}

func (l *stubLimiter) SetCooldown(_ context.Context, email string, _ time.Duration) {
	l.cooldownsSet = append(l.cooldownsSet, email)
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func setupTestServer(t *testing.T) (*Server, *stubStore, *recordingMail, *stubLimiter, *fixedClock) {
	t.Helper()

	store := &stubStore{
		user: &account.User{
			ID:    "5b9a4f0e-0000-4000-8000-000000000001",
			Email: "u@x.com",
		},
	}
	mail := &recordingMail{}
	limiter := &stubLimiter{}
	clk := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	hasher := &auth.BcryptHasher{Cost: bcrypt.MinCost}

	svc := reset.NewService(store, mail, hasher, clk, "Heritage Bites")
	srv := NewServer(config.Config{AppName: "Heritage Bites"}, svc, limiter)
	return srv, store, mail, limiter, clk
}

func doPost(t *testing.T, srv *Server, path string, body map[string]string) (int, map[string]interface{}) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec.Code, payload
}

func TestSendOtp_Success(t *testing.T) {
	srv, store, mail, limiter, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "u@x.com"})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP sent successfully", body["message"])
	assert.NotContains(t, body, "error")
	require.Len(t, mail.texts, 1)
	assert.NotNil(t, store.user.OTP)
	assert.Equal(t, []string{"u@x.com"}, limiter.cooldownsSet)
}

func TestSendOtp_MissingEmail(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/sendOtp", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email is required", body["error"])
}

func TestSendOtp_MalformedEmail(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "not-an-email"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid email format", body["error"])
}

func TestSendOtp_UnknownUser(t *testing.T) {
	srv, _, mail, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "ghost@x.com"})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])
	assert.Empty(t, mail.texts)
}

func TestSendOtp_CooldownActive(t *testing.T) {
	srv, _, mail, limiter, _ := setupTestServer(t)
	limiter.cooldown = 42 * time.Second

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "u@x.com"})

	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, float64(42), body["cooldown"])
	assert.Empty(t, mail.texts)
}

func TestSendOtp_RateLimited(t *testing.T) {
	srv, _, mail, limiter, _ := setupTestServer(t)
	limiter.issueLocked = true

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "u@x.com"})

	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "Too many OTP requests")
	assert.Empty(t, mail.texts)
}

func TestSendOtp_StoreFailure(t *testing.T) {
	srv, store, _, limiter, _ := setupTestServer(t)
	store.setOTPErr = errors.New("write refused")

	status, body := doPost(t, srv, "/sendOtp", map[string]string{"email": "u@x.com"})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to send OTP", body["error"])
	assert.Empty(t, limiter.cooldownsSet)
}

func issueCode(t *testing.T, srv *Server, mail *recordingMail) string {
	t.Helper()

	status, _ := doPost(t, srv, "/sendOtp", map[string]string{"email": "u@x.com"})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, mail.texts)

	code := codePattern.FindString(mail.texts[len(mail.texts)-1])
	require.Len(t, code, 6)
	return code
}

func TestVerifyOtp_Success(t *testing.T) {
	srv, store, mail, limiter, _ := setupTestServer(t)
	code := issueCode(t, srv, mail)

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com", "otp": code})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OTP verified successfully", body["message"])
	token, ok := body["resetToken"].(string)
	require.True(t, ok)
	assert.Regexp(t, "^[0-9a-f]{64}$", token)
	assert.Nil(t, store.user.OTP)
	assert.Equal(t, []string{"u@x.com"}, limiter.verifyResets)
}

func TestVerifyOtp_MissingFields(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email and OTP required", body["error"])
}

func TestVerifyOtp_UnknownUser(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "ghost@x.com", "otp": "123456"})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])
}

func TestVerifyOtp_WrongCode(t *testing.T) {
	srv, store, mail, _, _ := setupTestServer(t)
	issueCode(t, srv, mail)

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com", "otp": "000000"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid OTP", body["error"])
	assert.NotNil(t, store.user.OTP)
}

func TestVerifyOtp_Expired(t *testing.T) {
	srv, _, mail, _, clk := setupTestServer(t)
	code := issueCode(t, srv, mail)

	clk.now = clk.now.Add(11 * time.Minute)

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com", "otp": code})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP expired", body["error"])
}

func TestVerifyOtp_RateLimited(t *testing.T) {
	srv, _, mail, limiter, _ := setupTestServer(t)
	code := issueCode(t, srv, mail)
	limiter.verifyLocked = true

	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com", "otp": code})

	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "Too many attempts")
}

func verifiedToken(t *testing.T, srv *Server, mail *recordingMail) string {
	t.Helper()

	code := issueCode(t, srv, mail)
	status, body := doPost(t, srv, "/verifyOtp", map[string]string{"email": "u@x.com", "otp": code})
	require.Equal(t, http.StatusOK, status)
	token, ok := body["resetToken"].(string)
	require.True(t, ok)
	return token
}

func TestResetPassword_Success(t *testing.T) {
	srv, store, mail, _, _ := setupTestServer(t)
	token := verifiedToken(t, srv, mail)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  token,
		"newPassword": "NewPass1!",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password updated successfully", body["message"])
	require.NotNil(t, store.user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*store.user.PasswordHash), []byte("NewPass1!")))
	assert.Nil(t, store.user.ResetToken)
}

func TestResetPassword_MissingFields(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{"resetToken": "abc"})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing reset token or password", body["error"])
}

func TestResetPassword_WeakPassword(t *testing.T) {
	srv, _, mail, _, _ := setupTestServer(t)
	token := verifiedToken(t, srv, mail)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  token,
		"newPassword": "short",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "at least 8 characters")
}

func TestResetPassword_UnknownToken(t *testing.T) {
	srv, _, _, _, _ := setupTestServer(t)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		"newPassword": "NewPass1!",
	})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid reset token", body["error"])
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	srv, _, mail, _, clk := setupTestServer(t)
	token := verifiedToken(t, srv, mail)

	clk.now = clk.now.Add(16 * time.Minute)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  token,
		"newPassword": "NewPass1!",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Reset token expired", body["error"])
}

func TestResetPassword_ReusedToken(t *testing.T) {
	srv, _, mail, _, _ := setupTestServer(t)
	token := verifiedToken(t, srv, mail)

	status, _ := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  token,
		"newPassword": "NewPass1!",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doPost(t, srv, "/resetPassword", map[string]string{
		"resetToken":  token,
		"newPassword": "OtherPass1!",
	})

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid reset token", body["error"])
}
