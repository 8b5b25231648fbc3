package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/security"
)

// PatientLookup resolves a QR token to a patient record.
type PatientLookup interface {
	GetByQRToken(ctx context.Context, token string) (*models.Patient, error)
}

// AccessEventStore persists emergency-access events and serves the read-only
// token verification endpoint.
type AccessEventStore interface {
	Create(ctx context.Context, event *models.AccessEvent) (*models.AccessEvent, error)
	GetByAccessToken(ctx context.Context, token string) (*models.AccessEvent, error)
}

// RepresentativeNotifier informs a patient's representatives that the
// emergency profile was accessed. Fire-and-forget: failures are logged by the
// implementation and never surface to the access path.
type RepresentativeNotifier interface {
	NotifyEmergencyAccess(ctx context.Context, patient *models.Patient, event *models.AccessEvent)
}

// EmergencyAccessInput is the validated input to an emergency-access attempt.
type EmergencyAccessInput struct {
	QRToken         string
	AccessorName    string
	AccessorRole    string
	LicenseNumber   string
	InstitutionName string
	Latitude        *float64
	Longitude       *float64
	LocationName    string
	IPAddress       string
	UserAgent       string
}

// EmergencyAccessResult is the trust-annotated disclosure returned on grant.
type EmergencyAccessResult struct {
	Profile            *models.EmergencyProfile `json:"profile"`
	TrustLevel         models.TrustLevel        `json:"trust_level"`
	CredentialWarnings []string                 `json:"credential_warnings"`
	RegistryDetails    *models.RegistryDetails  `json:"registry_details,omitempty"`
	AccessToken        string                   `json:"access_token"`
	AccessedAt         time.Time                `json:"accessed_at"`
	ExpiresAt          time.Time                `json:"expires_at"`
}

// TokenStatus is returned by VerifyAccessToken.
type TokenStatus struct {
	Valid      bool      `json:"valid"`
	ExpiresAt  time.Time `json:"expires_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// EmergencyConfig holds orchestrator tuning knobs.
type EmergencyConfig struct {
	AccessTokenTTL time.Duration // lifetime of the returned access token
}

// EmergencyService orchestrates anonymous emergency-access requests: input
// checks, credential trust evaluation, patient resolution, timing
// normalization, attempt tracking and the final grant/deny decision.
//
// Denials for a registry-rejected license and for an unresolvable QR token
// are deliberately indistinguishable to the caller, in error and in latency.
type EmergencyService struct {
	trust    *TrustService
	patients PatientLookup
	events   AccessEventStore
	notifier RepresentativeNotifier
	tracker  *security.FailedAttemptTracker
	timing   *security.TimingDelay
	monitor  *security.Monitor
	metrics  *security.Metrics
	config   EmergencyConfig
	logger   *slog.Logger
}

// NewEmergencyService creates an EmergencyService. notifier and metrics may
// be nil.
func NewEmergencyService(
	trust *TrustService,
	patients PatientLookup,
	events AccessEventStore,
	notifier RepresentativeNotifier,
	tracker *security.FailedAttemptTracker,
	timing *security.TimingDelay,
	monitor *security.Monitor,
	metrics *security.Metrics,
	config EmergencyConfig,
	logger *slog.Logger,
) *EmergencyService {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = 24 * time.Hour
	}
	return &EmergencyService{
		trust:    trust,
		patients: patients,
		events:   events,
		notifier: notifier,
		tracker:  tracker,
		timing:   timing,
		monitor:  monitor,
		metrics:  metrics,
		config:   config,
		logger:   logger,
	}
}

// AccessEmergencyProfile handles one emergency-access attempt.
//
// Processing order matters: the synchronous format check fast-fails garbage
// input with no lookup and no delay (it reveals nothing about valid tokens);
// registry verification never fails the request on a connection error, only
// on an authoritative negative; and an unresolvable token is padded to the
// timing floor before the denial is returned.
func (s *EmergencyService) AccessEmergencyProfile(ctx context.Context, input EmergencyAccessInput) (*EmergencyAccessResult, error) {
	start := time.Now()

	if _, err := uuid.Parse(input.QRToken); err != nil {
		s.monitor.Record(security.EventInvalidToken, input.IPAddress)
		return nil, fmt.Errorf("%w: malformed QR token", models.ErrBadRequest)
	}

	// 1. Synchronous credential format check — no I/O, no delay on failure.
	assessment := s.trust.ValidateProfessionalCredentials(input.AccessorRole, input.LicenseNumber, input.InstitutionName)
	if !assessment.IsValid {
		s.recordDenied(input, "credential format rejected", assessment.Errors)
		return nil, models.ErrAccessDenied
	}

	// 2. Registry verification. Connection errors only downgrade trust; an
	// authoritative "not found" is a hard denial with timing normalization.
	assessment = s.trust.VerifyProfessionalCredentials(ctx, input.AccessorRole, input.LicenseNumber, input.AccessorName, input.InstitutionName)
	if !assessment.IsValid {
		s.recordDenied(input, "license rejected by registry", assessment.Errors)
		s.timing.WaitFrom(ctx, start)
		return nil, models.ErrAccessDenied
	}

	// 3. Resolve the patient behind the QR token.
	patient, err := s.patients.GetByQRToken(ctx, input.QRToken)
	if err != nil {
		s.recordDenied(input, "qr token not resolved", nil)
		s.timing.WaitFrom(ctx, start)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAccessDenied
		}
		s.logger.Error("patient lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	trustLevel := s.trust.TrustLevelForAssessment(assessment, input.AccessorRole, input.LicenseNumber, input.InstitutionName)

	event := s.buildEvent(patient, input, assessment, trustLevel, start)
	persisted, err := s.events.Create(ctx, event)
	if err != nil {
		// The grant stands; losing one audit row must not block care.
		s.logger.Error("failed to persist access event", slog.Any("error", err))
		persisted = event
	}

	if s.notifier != nil {
		// Fire-and-forget with a detached context so representative
		// notification survives the request ending.
		go s.notifier.NotifyEmergencyAccess(context.WithoutCancel(ctx), patient, persisted)
	}

	s.monitor.Record(security.EventEmergencyAccessGranted, input.IPAddress)
	if s.metrics != nil {
		s.metrics.EmergencyAccessTotal.WithLabelValues("granted", trustLevel.String()).Inc()
	}
	s.logger.Info("emergency access granted",
		slog.String("patient_id", patient.ID),
		slog.String("accessor_role", input.AccessorRole),
		slog.String("trust_level", trustLevel.String()),
		slog.String("ip_address", input.IPAddress),
	)

	return &EmergencyAccessResult{
		Profile:            patient.EmergencyProfile(),
		TrustLevel:         trustLevel,
		CredentialWarnings: assessment.Warnings,
		RegistryDetails:    assessment.RegistryDetails,
		AccessToken:        event.AccessToken,
		AccessedAt:         event.AccessedAt,
		ExpiresAt:          event.ExpiresAt,
	}, nil
}

// VerifyAccessToken is the idempotent read-only check used by UI polling.
func (s *EmergencyService) VerifyAccessToken(ctx context.Context, token string) (*TokenStatus, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: malformed access token", models.ErrBadRequest)
	}

	event, err := s.events.GetByAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load access event: %w", err)
	}

	return &TokenStatus{
		Valid:      time.Now().Before(event.ExpiresAt),
		ExpiresAt:  event.ExpiresAt,
		AccessedAt: event.AccessedAt,
	}, nil
}

// RecordRateLimited logs and counts a request that was stopped by the rate
// limiter before reaching the orchestrator.
func (s *EmergencyService) RecordRateLimited(ip string) {
	s.monitor.Record(security.EventRateLimitHit, ip)
	s.logger.Warn("emergency access rate limited", slog.String("ip_address", ip))
}

func (s *EmergencyService) recordDenied(input EmergencyAccessInput, reason string, details []string) {
	s.tracker.RecordFailure(input.IPAddress)
	s.monitor.Record(security.EventEmergencyAccessDenied, input.IPAddress)
	if s.metrics != nil {
		s.metrics.EmergencyAccessTotal.WithLabelValues("denied", models.TrustUnverified.String()).Inc()
	}
	s.logger.Warn("emergency access denied",
		slog.String("reason", reason),
		slog.String("accessor_role", input.AccessorRole),
		slog.String("ip_address", input.IPAddress),
		slog.Any("details", details),
	)
}

func (s *EmergencyService) buildEvent(patient *models.Patient, input EmergencyAccessInput, assessment *models.TrustAssessment, trustLevel models.TrustLevel, start time.Time) *models.AccessEvent {
	event := &models.AccessEvent{
		PatientID:    &patient.ID,
		AccessToken:  uuid.NewString(),
		AccessorName: input.AccessorName,
		AccessorRole: input.AccessorRole,
		TrustLevel:   trustLevel.String(),
		Warnings:     assessment.Warnings,
		Granted:      true,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		AccessedAt:   start,
		ExpiresAt:    start.Add(s.config.AccessTokenTTL),
	}
	if input.LicenseNumber != "" {
		event.LicenseNumber = &input.LicenseNumber
	}
	if input.InstitutionName != "" {
		event.InstitutionName = &input.InstitutionName
	}
	if input.LocationName != "" {
		event.LocationName = &input.LocationName
	}
	return event
}
