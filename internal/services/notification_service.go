package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/vida-health/vida/internal/models"
)

// RepresentativeSource lists the contacts to notify for a patient.
type RepresentativeSource interface {
	ListRepresentatives(ctx context.Context, patientID string) ([]*models.Representative, error)
}

// NotifiedMarker records that a representative notification went out for an
// access event.
type NotifiedMarker interface {
	MarkNotified(ctx context.Context, eventID string) error
}

// NotificationService emails a patient's representatives when the emergency
// profile is accessed. Sends run on a best-effort basis: a failed email is
// logged but never blocks or reverses the access itself.
type NotificationService struct {
	sesClient   *ses.Client
	reps        RepresentativeSource
	events      NotifiedMarker
	fromAddress string
	logger      *slog.Logger
}

func NewNotificationService(
	region, fromAddress string,
	reps RepresentativeSource,
	events NotifiedMarker,
	logger *slog.Logger,
) (*NotificationService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &NotificationService{
		sesClient:   ses.NewFromConfig(cfg),
		reps:        reps,
		events:      events,
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// NotifyEmergencyAccess emails every opted-in representative of the patient.
func (s *NotificationService) NotifyEmergencyAccess(ctx context.Context, patient *models.Patient, event *models.AccessEvent) {
	reps, err := s.reps.ListRepresentatives(ctx, patient.ID)
	if err != nil {
		s.logger.Error("failed to list representatives for notification",
			slog.String("patient_id", patient.ID),
			slog.Any("error", err))
		return
	}

	sent := 0
	for _, rep := range reps {
		if !rep.Notify || rep.Email == "" {
			continue
		}
		if err := s.sendAccessEmail(ctx, rep, patient, event); err != nil {
			s.logger.Error("failed to send access notification",
				slog.String("patient_id", patient.ID),
				slog.String("representative_id", rep.ID),
				slog.Any("error", err))
			continue
		}
		sent++
	}

	if sent > 0 && event.ID != "" {
		if err := s.events.MarkNotified(ctx, event.ID); err != nil {
			s.logger.Error("failed to mark event as notified",
				slog.String("event_id", event.ID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("emergency access notifications dispatched",
		slog.String("patient_id", patient.ID),
		slog.Int("sent", sent))
}

func (s *NotificationService) sendAccessEmail(ctx context.Context, rep *models.Representative, patient *models.Patient, event *models.AccessEvent) error {
	location := "unknown location"
	if event.LocationName != nil && *event.LocationName != "" {
		location = *event.LocationName
	}

	subject := fmt.Sprintf("Emergency profile access for %s", patient.FullName)

	textBody := fmt.Sprintf(`Hello %s,

The emergency medical profile of %s was just accessed.

Accessed by: %s (%s)
Trust level: %s
Location: %s
Time: %s

If you believe this access was not legitimate, contact %s and consider
rotating the emergency QR code from the VIDA app.

This is an automated message from VIDA.
`,
		rep.FullName,
		patient.FullName,
		event.AccessorName, event.AccessorRole,
		event.TrustLevel,
		location,
		event.AccessedAt.Format(time.RFC1123),
		patient.FullName,
	)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{rep.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	if _, err := s.sesClient.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	return nil
}

// NoopNotifier is used when email delivery is disabled. It only logs.
type NoopNotifier struct {
	logger *slog.Logger
}

func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyEmergencyAccess(ctx context.Context, patient *models.Patient, event *models.AccessEvent) {
	n.logger.Info("notifications disabled; skipping representative emails",
		slog.String("patient_id", patient.ID))
}
