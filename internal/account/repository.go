package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `user_id, email, password, otp, otp_expiry, reset_token, reset_token_expiry, created_at, updated_at`

type Repository struct {
	DB *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email=$1
	`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// FindByResetToken looks up the single account holding the given token
// digest. Unknown and mismatched tokens are indistinguishable to callers.
func (r *Repository) FindByResetToken(ctx context.Context, hashedToken string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token=$1
	`, hashedToken)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

// SetOTP stores a fresh code digest and expiry on the account keyed by
// email. Any outstanding reset token is invalidated in the same write so
// only one credential is ever active per account.
func (r *Repository) SetOTP(ctx context.Context, email, hashedCode string, expires time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET otp=$1,
		    otp_expiry=$2,
		    reset_token=NULL,
		    reset_token_expiry=NULL,
		    updated_at=NOW()
		WHERE email=$3
	`, hashedCode, expires, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no account matched email")
	}
	return nil
}

// ConsumeOTP atomically exchanges a still-valid code for a reset token.
// The conditional WHERE makes concurrent verifications race-safe: the
// loser observes zero affected rows instead of minting a second token.
func (r *Repository) ConsumeOTP(ctx context.Context, email, hashedCode string, now time.Time, hashedToken string, tokenExpires time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token=$1,
		    reset_token_expiry=$2,
		    otp=NULL,
		    otp_expiry=NULL,
		    updated_at=NOW()
		WHERE email=$3 AND otp=$4 AND otp_expiry > $5
	`, hashedToken, tokenExpires, email, hashedCode, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AdminSetCredential overwrites the stored password hash by stable user
// ID. This is the only write path that touches the credential column.
func (r *Repository) AdminSetCredential(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE users
		SET password=$1,
		    updated_at=NOW()
		WHERE user_id=$2
	`, passwordHash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no account matched user id")
	}
	return nil
}

// ClearResetToken nulls the token pair by user ID rather than by token
// value to avoid race ambiguity with concurrent resets.
func (r *Repository) ClearResetToken(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET reset_token=NULL,
		    reset_token_expiry=NULL,
		    updated_at=NOW()
		WHERE user_id=$1
	`, userID)
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		id               string
		email            string
		password         sql.NullString
		otp              sql.NullString
		otpExpiry        sql.NullTime
		resetToken       sql.NullString
		resetTokenExpiry sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
	)

	if err := row.Scan(
		&id,
		&email,
		&password,
		&otp,
		&otpExpiry,
		&resetToken,
		&resetTokenExpiry,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	return &User{
		ID:               id,
		Email:            email,
		PasswordHash:     nullStringPtr(password),
		OTP:              nullStringPtr(otp),
		OTPExpiry:        nullTimePtr(otpExpiry),
		ResetToken:       nullStringPtr(resetToken),
		ResetTokenExpiry: nullTimePtr(resetTokenExpiry),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time.UTC()
		return &t
	}
	return nil
}
