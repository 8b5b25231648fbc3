package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vida-health/vida/internal/cache"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/security"
)

type MockMFAStore struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Patient, error)
	SetMFAFunc  func(ctx context.Context, patientID, secret string, enabled bool) error
}

func (m *MockMFAStore) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockMFAStore) SetMFA(ctx context.Context, patientID, secret string, enabled bool) error {
	return m.SetMFAFunc(ctx, patientID, secret, enabled)
}

func newMFAService(store *MockMFAStore) (*MFAService, *security.Monitor) {
	logger := slog.Default()
	monitor := security.NewMonitor(security.MonitorConfig{}, nil, logger)
	return NewMFAService(store, cache.NewMemoryStore(time.Minute), monitor, logger), monitor
}

func TestMFASetupAndConfirm(t *testing.T) {
	var savedSecret string
	var savedEnabled bool
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, Email: "ana@example.com"}, nil
		},
		SetMFAFunc: func(ctx context.Context, patientID, secret string, enabled bool) error {
			savedSecret = secret
			savedEnabled = enabled
			return nil
		},
	}
	svc, _ := newMFAService(store)

	setup, err := svc.InitiateSetup(context.Background(), "patient-1")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "otpauth://")

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmSetup(context.Background(), "patient-1", code))
	assert.Equal(t, setup.Secret, savedSecret)
	assert.True(t, savedEnabled)
}

func TestMFAConfirmInvalidCode(t *testing.T) {
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, Email: "ana@example.com"}, nil
		},
		SetMFAFunc: func(ctx context.Context, patientID, secret string, enabled bool) error {
			t.Fatal("secret must not be persisted for an invalid code")
			return nil
		},
	}
	svc, monitor := newMFAService(store)

	_, err := svc.InitiateSetup(context.Background(), "patient-1")
	require.NoError(t, err)

	err = svc.ConfirmSetup(context.Background(), "patient-1", "000000")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, 1, monitor.Count(security.EventMFAFailure, "patient-1"))
}

func TestMFAConfirmWithoutPendingSetup(t *testing.T) {
	store := &MockMFAStore{}
	svc, _ := newMFAService(store)

	err := svc.ConfirmSetup(context.Background(), "patient-1", "123456")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMFASetupRejectedWhenAlreadyEnabled(t *testing.T) {
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, MFAEnabled: true}, nil
		},
	}
	svc, _ := newMFAService(store)

	_, err := svc.InitiateSetup(context.Background(), "patient-1")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestMFAVerifyCode(t *testing.T) {
	secretKey, err := totp.Generate(totp.GenerateOpts{Issuer: "VIDA", AccountName: "ana@example.com"})
	require.NoError(t, err)

	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, MFAEnabled: true, MFASecret: secretKey.Secret()}, nil
		},
	}
	svc, monitor := newMFAService(store)

	code, err := totp.GenerateCode(secretKey.Secret(), time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.VerifyCode(context.Background(), "patient-1", code))

	err = svc.VerifyCode(context.Background(), "patient-1", "000000")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, 1, monitor.Count(security.EventMFAFailure, "patient-1"))
}

func TestMFAVerifyCodeNotEnabled(t *testing.T) {
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id}, nil
		},
	}
	svc, _ := newMFAService(store)

	err := svc.VerifyCode(context.Background(), "patient-1", "123456")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestMFADisableRequiresValidCode(t *testing.T) {
	secretKey, err := totp.Generate(totp.GenerateOpts{Issuer: "VIDA", AccountName: "ana@example.com"})
	require.NoError(t, err)

	var cleared bool
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id, MFAEnabled: true, MFASecret: secretKey.Secret()}, nil
		},
		SetMFAFunc: func(ctx context.Context, patientID, secret string, enabled bool) error {
			cleared = secret == "" && !enabled
			return nil
		},
	}
	svc, monitor := newMFAService(store)

	err = svc.Disable(context.Background(), "patient-1", "000000")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.False(t, cleared)
	assert.Equal(t, 1, monitor.Count(security.EventMFAFailure, "patient-1"))

	code, err := totp.GenerateCode(secretKey.Secret(), time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Disable(context.Background(), "patient-1", code))
	assert.True(t, cleared)
}

func TestMFADisableNotEnabled(t *testing.T) {
	store := &MockMFAStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Patient, error) {
			return &models.Patient{ID: id}, nil
		},
	}
	svc, _ := newMFAService(store)

	err := svc.Disable(context.Background(), "patient-1", "123456")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
