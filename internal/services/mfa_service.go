package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/vida-health/vida/internal/cache"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/security"
)

// mfaIssuer appears in authenticator apps next to the account.
const mfaIssuer = "VIDA"

// pendingSetupTTL bounds how long an unconfirmed secret stays parked in the
// cache before the patient has to start over.
const pendingSetupTTL = 10 * time.Minute

// MFAStore is the patient persistence the MFA service needs.
type MFAStore interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	SetMFA(ctx context.Context, patientID, secret string, enabled bool) error
}

// MFAService handles TOTP enrollment for patient accounts. A generated
// secret is held in the pending-setup cache namespace until the patient
// confirms it with a valid code; only then is it persisted and MFA enabled.
type MFAService struct {
	store   MFAStore
	pending *cache.Namespace
	monitor *security.Monitor
	logger  *slog.Logger
}

func NewMFAService(store MFAStore, cacheStore cache.Store, monitor *security.Monitor, logger *slog.Logger) *MFAService {
	return &MFAService{
		store:   store,
		pending: cache.NewNamespace(cacheStore, cache.PrefixMFAPending),
		monitor: monitor,
		logger:  logger,
	}
}

// MFASetup is returned from InitiateSetup. The Secret is shown once so the
// patient can enter it manually; the URL feeds an authenticator app.
type MFASetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// InitiateSetup generates a TOTP secret and parks it as pending. The secret
// is not persisted to the patient record until ConfirmSetup succeeds.
func (s *MFAService) InitiateSetup(ctx context.Context, patientID string) (*MFASetup, error) {
	patient, err := s.store.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if patient.MFAEnabled {
		return nil, models.ErrConflict
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: patient.Email,
		SecretSize:  32,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.pending.SetJSON(ctx, patientID, key.Secret(), pendingSetupTTL); err != nil {
		s.logger.Error("failed to store pending MFA secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("MFA setup initiated", slog.String("patient_id", patientID))
	return &MFASetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmSetup validates the first code against the pending secret. On
// success the secret is persisted and MFA is enabled for the patient.
func (s *MFAService) ConfirmSetup(ctx context.Context, patientID, code string) error {
	var secret string
	ok, err := s.pending.GetJSON(ctx, patientID, &secret)
	if err != nil {
		s.logger.Error("failed to read pending MFA secret", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !ok {
		return models.ErrNotFound
	}

	if !totp.Validate(code, secret) {
		s.monitor.Record(security.EventMFAFailure, patientID)
		return models.ErrUnauthorized
	}

	if err := s.store.SetMFA(ctx, patientID, secret, true); err != nil {
		s.logger.Error("failed to enable MFA", slog.Any("error", err))
		return models.ErrInternalServer
	}

	_ = s.pending.Delete(ctx, patientID)
	s.logger.Info("MFA enabled", slog.String("patient_id", patientID))
	return nil
}

// VerifyCode validates a TOTP code during login for MFA-enabled patients.
func (s *MFAService) VerifyCode(ctx context.Context, patientID, code string) error {
	patient, err := s.store.GetByID(ctx, patientID)
	if err != nil {
		return err
	}

	if !patient.MFAEnabled || patient.MFASecret == "" {
		return models.ErrBadRequest
	}

	if !totp.Validate(code, patient.MFASecret) {
		s.monitor.Record(security.EventMFAFailure, patientID)
		return models.ErrUnauthorized
	}

	return nil
}

// Disable turns MFA off and discards the stored secret. The patient must
// present a valid current code.
func (s *MFAService) Disable(ctx context.Context, patientID, code string) error {
	patient, err := s.store.GetByID(ctx, patientID)
	if err != nil {
		return err
	}

	if !patient.MFAEnabled || patient.MFASecret == "" {
		return models.ErrBadRequest
	}

	if !totp.Validate(code, patient.MFASecret) {
		s.monitor.Record(security.EventMFAFailure, patientID)
		return models.ErrForbidden
	}

	if err := s.store.SetMFA(ctx, patientID, "", false); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to disable MFA", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA disabled", slog.String("patient_id", patientID))
	return nil
}
