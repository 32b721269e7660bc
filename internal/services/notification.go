package service

import (
	"context"
	"log/slog"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	appErrors "github.com/dentalmart/marketplace/internal/errors"
	"github.com/dentalmart/marketplace/internal/models"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	"github.com/dentalmart/marketplace/pkg/sendgrid"
)

type NotificationService struct {
	repo  repository.NotificationRepository
	email sendgrid.EmailService
}

func NewNotificationService(repo repository.NotificationRepository, email sendgrid.EmailService) *NotificationService {
	return &NotificationService{repo: repo, email: email}
}

// SendEmail delivers an ad-hoc email (admin tooling) and records the attempt.
func (s *NotificationService) SendEmail(ctx context.Context, req *models.EmailNotificationRequest) (*models.Notification, error) {

	logger := middleware.LoggerFromContext(ctx)

	notification := &models.Notification{
		Type:      models.NotificationTypeEmail,
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Content:   req.Content,
		Status:    models.NotificationStatusPending,
	}

	if err := s.repo.CreateNotification(ctx, notification); err != nil {
		return nil, appErrors.DatabaseError("Failed to record notification").WithError(err)
	}

	sendErr := s.email.Send(ctx, req)

	status := models.NotificationStatusSent

	errText := ""
	if sendErr != nil {
		status = models.NotificationStatusFailed
		errText = sendErr.Error()
	}

	if err := s.repo.UpdateNotificationStatus(ctx, notification.ID, status, errText); err != nil {
		logger.Warn("Failed to update notification status", slog.Any("error", err))
	}

	notification.Status = status
	notification.Error = errText

	if sendErr != nil {
		return notification, appErrors.ThirdPartyError("Failed to send email").WithError(sendErr)
	}

	return notification, nil
}

func (s *NotificationService) ListNotifications(ctx context.Context, page, size int) ([]*models.Notification, int, error) {

	notifications, total, err := s.repo.ListNotifications(ctx, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to list notifications").WithError(err)
	}

	return notifications, total, nil
}
