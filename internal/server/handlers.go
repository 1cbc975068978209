package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"heritagebites/internal/auth"
	"heritagebites/internal/i18n"
	"heritagebites/internal/reset"
)

type sendOtpRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleSendOtp(w http.ResponseWriter, r *http.Request) {
	var req sendOtpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	ctx := r.Context()
	locale := i18n.LocaleFromRequest(r)
	emailKey := strings.ToLower(req.Email)
	if ttl := s.RateLimiter.CooldownTTL(ctx, emailKey); ttl > 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"cooldown": int64(ttl.Seconds()),
			"error":    fmt.Sprintf("Please wait %d seconds before requesting another OTP.", int(ttl.Seconds())),
		})
		return
	}

	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterIssueAttempt(ctx, req.Email, ip); err != nil {
		log.Printf("send-otp: rate limit check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send OTP")
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"cooldown": int64(ttl.Seconds()),
			"error":    "Too many OTP requests. Try again later.",
		})
		return
	}

	if err := s.Reset.IssueOTP(ctx, req.Email, locale); err != nil {
		if errors.Is(err, reset.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("send-otp: issue failed for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "Failed to send OTP")
		return
	}

	s.RateLimiter.SetCooldown(ctx, emailKey, auth.EmailCooldown)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "OTP sent successfully",
	})
}

type verifyOtpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "Email and OTP required")
		return
	}

	ctx := r.Context()
	if locked, ttl, err := s.RateLimiter.RegisterVerifyAttempt(ctx, req.Email); err != nil {
		log.Printf("verify-otp: rate limit check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify OTP")
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"cooldown": int64(ttl.Seconds()),
			"error":    "Too many attempts. Try again later.",
		})
		return
	}

	token, err := s.Reset.VerifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, reset.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, reset.ErrInvalidCode):
			writeError(w, http.StatusBadRequest, "Invalid OTP")
		case errors.Is(err, reset.ErrCodeExpired):
			writeError(w, http.StatusBadRequest, "OTP expired")
		default:
			log.Printf("verify-otp: verification failed for %s: %v", req.Email, err)
			writeError(w, http.StatusInternalServerError, "Failed to verify OTP")
		}
		return
	}

	s.RateLimiter.ResetVerify(ctx, req.Email)

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "OTP verified successfully",
		"resetToken": token,
	})
}

type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ResetToken == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Missing reset token or password")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.Reset.ResetPassword(r.Context(), req.ResetToken, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, reset.ErrInvalidToken):
			writeError(w, http.StatusNotFound, "Invalid reset token")
		case errors.Is(err, reset.ErrTokenExpired):
			writeError(w, http.StatusBadRequest, "Reset token expired")
		default:
			log.Printf("reset-password: update failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to update password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated successfully",
	})
}
