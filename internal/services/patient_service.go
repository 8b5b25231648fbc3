package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/vida-health/vida/internal/auth"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/security"
	pkgauth "github.com/vida-health/vida/pkg/auth"
)

// PatientRepository is the persistence surface the patient service needs.
type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	GetByEmail(ctx context.Context, email string) (*models.Patient, error)
	GetByQRToken(ctx context.Context, qrToken string) (*models.Patient, error)
	RotateQRToken(ctx context.Context, patientID string) (string, error)
	UpdateProfile(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	ListRepresentatives(ctx context.Context, patientID string) ([]*models.Representative, error)
	AddRepresentative(ctx context.Context, rep *models.Representative) (*models.Representative, error)
	RemoveRepresentative(ctx context.Context, patientID, repID string) error
}

// PatientService manages patient accounts and their emergency QR tokens.
type PatientService struct {
	repo    PatientRepository
	tokens  *auth.TokenManager
	timing  *security.TimingDelay
	monitor *security.Monitor
	baseURL string
	logger  *slog.Logger
}

func NewPatientService(
	repo PatientRepository,
	tokens *auth.TokenManager,
	timing *security.TimingDelay,
	monitor *security.Monitor,
	baseURL string,
	logger *slog.Logger,
) *PatientService {
	return &PatientService{
		repo:    repo,
		tokens:  tokens,
		timing:  timing,
		monitor: monitor,
		baseURL: baseURL,
		logger:  logger,
	}
}

// EnrollInput carries the fields needed to create a patient account.
type EnrollInput struct {
	Email       string
	Password    string
	FullName    string
	BloodType   string
	Allergies   []string
	Conditions  []string
	Medications []string
}

// Enroll creates a patient account with a hashed password and a fresh
// QR token.
func (s *PatientService) Enroll(ctx context.Context, input EnrollInput) (*models.Patient, error) {
	hash, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	patient := &models.Patient{
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		BloodType:    input.BloodType,
		Allergies:    input.Allergies,
		Conditions:   input.Conditions,
		Medications:  input.Medications,
	}

	created, err := s.repo.Create(ctx, patient)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create patient", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("patient enrolled", slog.String("patient_id", created.ID))
	return created, nil
}

// Login verifies credentials and issues a JWT. Every failure path takes the
// same minimum time so an attacker cannot tell a missing account from a
// wrong password by the response latency.
func (s *PatientService) Login(ctx context.Context, email, password, ipAddress string) (string, *models.Patient, error) {
	start := time.Now()

	patient, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.monitor.Record(security.EventFailedLogin, ipAddress)
			s.timing.WaitFrom(ctx, start)
			return "", nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up patient", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	if !pkgauth.CheckPassword(password, patient.PasswordHash) {
		s.monitor.Record(security.EventFailedLogin, ipAddress, patient.ID)
		s.timing.WaitFrom(ctx, start)
		return "", nil, models.ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(patient.ID)
	if err != nil {
		s.logger.Error("failed to generate token", slog.Any("error", err))
		return "", nil, models.ErrInternalServer
	}

	s.monitor.ResetOnSuccess(ipAddress, patient.ID)
	s.logger.Info("patient logged in", slog.String("patient_id", patient.ID))
	return token, patient, nil
}

func (s *PatientService) GetByID(ctx context.Context, patientID string) (*models.Patient, error) {
	return s.repo.GetByID(ctx, patientID)
}

// GetByQRToken resolves the patient behind a scanned QR token.
func (s *PatientService) GetByQRToken(ctx context.Context, qrToken string) (*models.Patient, error) {
	return s.repo.GetByQRToken(ctx, qrToken)
}

func (s *PatientService) UpdateProfile(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	return s.repo.UpdateProfile(ctx, patient)
}

// emergencyURL is the URL encoded into the printed QR code. Scanning it lands
// an accessor on the emergency-access form with the token pre-filled.
func (s *PatientService) emergencyURL(qrToken string) string {
	return fmt.Sprintf("%s/emergency?token=%s", s.baseURL, qrToken)
}

// QRCodePNG renders the patient's current QR token as a PNG suitable for
// printing on a card or medical bracelet.
func (s *PatientService) QRCodePNG(ctx context.Context, patientID string, size int) ([]byte, error) {
	patient, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if size <= 0 {
		size = 256
	}

	png, err := qrcode.Encode(s.emergencyURL(patient.QRToken), qrcode.Medium, size)
	if err != nil {
		s.logger.Error("failed to encode QR code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return png, nil
}

// RotateQRToken invalidates the patient's printed QR codes and returns the
// replacement token.
func (s *PatientService) RotateQRToken(ctx context.Context, patientID string) (string, error) {
	newToken, err := s.repo.RotateQRToken(ctx, patientID)
	if err != nil {
		return "", err
	}

	s.logger.Info("QR token rotated", slog.String("patient_id", patientID))
	return newToken, nil
}

func (s *PatientService) ListRepresentatives(ctx context.Context, patientID string) ([]*models.Representative, error) {
	return s.repo.ListRepresentatives(ctx, patientID)
}

func (s *PatientService) AddRepresentative(ctx context.Context, rep *models.Representative) (*models.Representative, error) {
	return s.repo.AddRepresentative(ctx, rep)
}

func (s *PatientService) RemoveRepresentative(ctx context.Context, patientID, repID string) error {
	return s.repo.RemoveRepresentative(ctx, patientID, repID)
}
