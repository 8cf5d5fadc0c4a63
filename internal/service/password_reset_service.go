package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"bus_ticket/internal/mail"
	"bus_ticket/internal/repository"
	"bus_ticket/internal/utils"

	"go.uber.org/zap"
)

const resetMailSubject = "Password Reset Request"

// MailQueue accepts outbound mail for asynchronous delivery
type MailQueue interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

// PasswordResetService implements the forget/reset password handshake. No
// reset session is stored; the reset token carries the user id, and its jti is
// recorded once used so the token cannot be replayed.
type PasswordResetService interface {
	RequestReset(ctx context.Context, phone, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type passwordResetService struct {
	userRepo     repository.UserRepository
	consumed     repository.ConsumedTokenRepository
	jwtUtil      *utils.JWTUtil
	mailQueue    MailQueue
	resetURLBase string
	log          *zap.Logger
}

func NewPasswordResetService(
	userRepo repository.UserRepository,
	consumed repository.ConsumedTokenRepository,
	jwtUtil *utils.JWTUtil,
	mailQueue MailQueue,
	resetURLBase string,
	log *zap.Logger,
) PasswordResetService {
	return &passwordResetService{
		userRepo:     userRepo,
		consumed:     consumed,
		jwtUtil:      jwtUtil,
		mailQueue:    mailQueue,
		resetURLBase: resetURLBase,
		log:          log,
	}
}

// RequestReset mints a reset token for the user owning phone and queues a
// mail with the reset link to email. When the account has an email on file,
// email must match it (case-insensitively); a mismatch is reported exactly
// like an unknown phone. Queueing failures are logged only.
func (s *passwordResetService) RequestReset(ctx context.Context, phone, email string) error {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to find user by phone: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Email != "" {
		if !strings.EqualFold(strings.TrimSpace(email), user.Email) {
			s.log.Warn("reset requested for an email not on file", zap.String("user_id", user.ID))
			return ErrUserNotFound
		}
		email = user.Email
	}

	token, _, _, err := s.jwtUtil.GenerateResetToken(user.ID, user.Role)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	link := s.resetURLBase + token
	body := fmt.Sprintf(`<p>Click <a href="%s">here</a> to reset your password.</p><p>The link expires in a few minutes.</p>`, html.EscapeString(link))

	if err := s.mailQueue.Enqueue(ctx, mail.Message{To: email, Subject: resetMailSubject, Body: body}); err != nil {
		s.log.Error("failed to queue password reset mail", zap.String("user_id", user.ID), zap.String("email", email), zap.Error(err))
	}
	return nil
}

// ResetPassword verifies token and overwrites the user's password. A token is
// accepted at most once.
func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.jwtUtil.ValidateResetToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) || errors.Is(err, utils.ErrTokenInvalid) {
			return ErrInvalidResetToken
		}
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidResetToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user by ID: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return ErrPasswordTooLong
		}
		return err
	}

	// Consumed before the write: a failed write burns the token and the user
	// requests a new one, but two concurrent submissions can never both win.
	fresh, err := s.consumed.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if !fresh {
		s.log.Warn("reset token replay rejected", zap.String("user_id", user.ID), zap.String("jti", claims.ID))
		return ErrInvalidResetToken
	}

	ok, err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return nil
}
