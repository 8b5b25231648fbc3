package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vida-health/vida/internal/auth"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/security"
	pkgauth "github.com/vida-health/vida/pkg/auth"
)

type MockPatientRepository struct {
	CreateFunc              func(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.Patient, error)
	GetByEmailFunc          func(ctx context.Context, email string) (*models.Patient, error)
	GetByQRTokenFunc        func(ctx context.Context, qrToken string) (*models.Patient, error)
	RotateQRTokenFunc       func(ctx context.Context, patientID string) (string, error)
	UpdateProfileFunc       func(ctx context.Context, patient *models.Patient) (*models.Patient, error)
	ListRepresentativesFunc func(ctx context.Context, patientID string) ([]*models.Representative, error)
	AddRepresentativeFunc   func(ctx context.Context, rep *models.Representative) (*models.Representative, error)
	RemoveRepresentativeFunc func(ctx context.Context, patientID, repID string) error
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	return m.CreateFunc(ctx, patient)
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockPatientRepository) GetByEmail(ctx context.Context, email string) (*models.Patient, error) {
	return m.GetByEmailFunc(ctx, email)
}

func (m *MockPatientRepository) GetByQRToken(ctx context.Context, qrToken string) (*models.Patient, error) {
	return m.GetByQRTokenFunc(ctx, qrToken)
}

func (m *MockPatientRepository) RotateQRToken(ctx context.Context, patientID string) (string, error) {
	return m.RotateQRTokenFunc(ctx, patientID)
}

func (m *MockPatientRepository) UpdateProfile(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	return m.UpdateProfileFunc(ctx, patient)
}

func (m *MockPatientRepository) ListRepresentatives(ctx context.Context, patientID string) ([]*models.Representative, error) {
	return m.ListRepresentativesFunc(ctx, patientID)
}

func (m *MockPatientRepository) AddRepresentative(ctx context.Context, rep *models.Representative) (*models.Representative, error) {
	return m.AddRepresentativeFunc(ctx, rep)
}

func (m *MockPatientRepository) RemoveRepresentative(ctx context.Context, patientID, repID string) error {
	return m.RemoveRepresentativeFunc(ctx, patientID, repID)
}

func newPatientService(repo *MockPatientRepository) (*PatientService, *security.Monitor) {
	logger := slog.Default()
	monitor := security.NewMonitor(security.MonitorConfig{}, nil, logger)
	timing := security.NewTimingDelay(security.TimingConfig{FloorMs: 20, JitterMs: 10})
	tokens := auth.NewTokenManager("a-sufficiently-long-test-secret", 15*time.Minute)
	return NewPatientService(repo, tokens, timing, monitor, "http://localhost:8080", logger), monitor
}

func TestEnrollHashesPassword(t *testing.T) {
	var stored *models.Patient
	repo := &MockPatientRepository{
		CreateFunc: func(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
			stored = patient
			patient.ID = "patient-1"
			return patient, nil
		},
	}
	svc, _ := newPatientService(repo)

	created, err := svc.Enroll(context.Background(), EnrollInput{
		Email:    "ana@example.com",
		Password: "correct horse battery",
		FullName: "Ana Silva",
	})
	require.NoError(t, err)

	assert.Equal(t, "patient-1", created.ID)
	assert.NotEqual(t, "correct horse battery", stored.PasswordHash)
	assert.True(t, pkgauth.CheckPassword("correct horse battery", stored.PasswordHash))
}

func TestEnrollDuplicateEmail(t *testing.T) {
	repo := &MockPatientRepository{
		CreateFunc: func(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
			return nil, models.ErrConflict
		},
	}
	svc, _ := newPatientService(repo)

	_, err := svc.Enroll(context.Background(), EnrollInput{
		Email:    "ana@example.com",
		Password: "correct horse battery",
		FullName: "Ana Silva",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestLoginSuccess(t *testing.T) {
	hash, err := pkgauth.HashPassword("correct horse battery")
	require.NoError(t, err)

	repo := &MockPatientRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Patient, error) {
			return &models.Patient{ID: "patient-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc, _ := newPatientService(repo)

	token, patient, err := svc.Login(context.Background(), "ana@example.com", "correct horse battery", "203.0.113.9")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "patient-1", patient.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := pkgauth.HashPassword("correct horse battery")
	require.NoError(t, err)

	repo := &MockPatientRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Patient, error) {
			return &models.Patient{ID: "patient-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc, monitor := newPatientService(repo)

	start := time.Now()
	_, _, err = svc.Login(context.Background(), "ana@example.com", "wrong", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, monitor.Count(security.EventFailedLogin, "203.0.113.9"))
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	repo := &MockPatientRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Patient, error) {
			return nil, models.ErrNotFound
		},
	}
	svc, monitor := newPatientService(repo)

	start := time.Now()
	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 1, monitor.Count(security.EventFailedLogin, "203.0.113.9"))
}

func TestLoginResetsFailureCount(t *testing.T) {
	hash, err := pkgauth.HashPassword("correct horse battery")
	require.NoError(t, err)

	repo := &MockPatientRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.Patient, error) {
			return &models.Patient{ID: "patient-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc, monitor := newPatientService(repo)

	_, _, _ = svc.Login(context.Background(), "ana@example.com", "wrong", "203.0.113.9")
	require.Equal(t, 1, monitor.Count(security.EventFailedLogin, "203.0.113.9"))

	_, _, err = svc.Login(context.Background(), "ana@example.com", "correct horse battery", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, 0, monitor.Count(security.EventFailedLogin, "203.0.113.9"))
}

func TestQRCodePNG(t *testing.T) {
	repo := &MockPatientRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, QRToken: "3f0a9a1e-8c2b-4c5d-9e6f-7a8b9c0d1e2f"}, nil
		},
	}
	svc, _ := newPatientService(repo)

	png, err := svc.QRCodePNG(context.Background(), "patient-1", 256)
	require.NoError(t, err)
	// PNG magic bytes
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRotateQRToken(t *testing.T) {
	repo := &MockPatientRepository{
		RotateQRTokenFunc: func(ctx context.Context, patientID string) (string, error) {
			return "new-token", nil
		},
	}
	svc, _ := newPatientService(repo)

	token, err := svc.RotateQRToken(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
}
