package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vida-health/vida/internal/models"
)

// MockRegistryVerifier implements RegistryVerifier with a function field.
type MockRegistryVerifier struct {
	VerifyHealthProfessionalFunc func(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck
}

func (m *MockRegistryVerifier) VerifyHealthProfessional(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
	return m.VerifyHealthProfessionalFunc(ctx, rawLicense, expectedName)
}

func registryFound(title string, nameMatches *bool) *MockRegistryVerifier {
	return &MockRegistryVerifier{
		VerifyHealthProfessionalFunc: func(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
			_, isHealth := splitTitle(title)
			return &models.HealthProfessionalCheck{
				IsHealthProfessional: isHealth,
				MatchesName:          nameMatches,
				Details: &models.VerificationResult{
					IsValid:    true,
					IsVerified: true,
					Source:     models.SourceLiveAPI,
					Record: &models.RegistryRecord{
						LicenseNumber: rawLicense,
						FirstName:     "Maria",
						LastName:      "Lopez",
						Title:         title,
					},
				},
			}
		},
	}
}

// splitTitle mirrors the health classification for mock purposes: any title
// mentioning doctor/nurse counts as a health profession.
func splitTitle(title string) (string, bool) {
	switch title {
	case "Doctor of Medicine", "Registered Nurse":
		return title, true
	default:
		return title, false
	}
}

func registryNotFound() *MockRegistryVerifier {
	return &MockRegistryVerifier{
		VerifyHealthProfessionalFunc: func(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
			return &models.HealthProfessionalCheck{
				Details: &models.VerificationResult{
					IsValid:    false,
					IsVerified: true,
					Source:     models.SourceLiveAPI,
					Error:      models.ErrLicenseNotInRegistry.Error(),
				},
			}
		},
	}
}

func registryDown() *MockRegistryVerifier {
	return &MockRegistryVerifier{
		VerifyHealthProfessionalFunc: func(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
			return &models.HealthProfessionalCheck{
				Details: &models.VerificationResult{
					IsValid:    true,
					IsVerified: false,
					Source:     models.SourceFormatOnly,
					Error:      models.ErrRegistryUnavailable.Error(),
				},
			}
		},
	}
}

func newTrustService(reg RegistryVerifier) *TrustService {
	return NewTrustService(reg, slog.Default())
}

func TestClassifyRole(t *testing.T) {
	svc := newTrustService(registryDown())

	assert.Equal(t, models.RequiresLicense, svc.ClassifyRole("DOCTOR"))
	assert.Equal(t, models.RequiresLicense, svc.ClassifyRole(" doctor "))
	assert.Equal(t, models.LicenseRecommended, svc.ClassifyRole("NURSE"))
	assert.Equal(t, models.LicenseRecommended, svc.ClassifyRole("paramedic"))
	assert.Equal(t, models.NoLicenseRequired, svc.ClassifyRole("OTHER"))
	assert.Equal(t, models.NoLicenseRequired, svc.ClassifyRole(""))
}

func TestValidateProfessionalCredentials_RequiredRoleNoLicense(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("DOCTOR", "", "")

	assert.False(t, a.IsValid)
	assert.False(t, a.IsVerified)
	assert.True(t, a.RequiresLicense)
	require.NotEmpty(t, a.Errors)
	assert.Contains(t, a.Errors[0], "required")
}

func TestValidateProfessionalCredentials_RequiredRoleMalformedLicense(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("DOCTOR", "12ab", "Hospital X")

	assert.False(t, a.IsValid)
	require.NotEmpty(t, a.Errors)
	assert.Contains(t, a.Errors[0], "format")
}

func TestValidateProfessionalCredentials_RequiredRoleValidLicense(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("DOCTOR", "1234567", "")

	assert.True(t, a.IsValid)
	assert.False(t, a.IsVerified)
	assert.NotEmpty(t, a.Warnings)
	assert.Empty(t, a.Errors)
}

func TestValidateProfessionalCredentials_RecommendedRoleNoLicense(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("NURSE", "", "Hospital X")

	assert.True(t, a.IsValid)
	assert.NotEmpty(t, a.Warnings)
	assert.Empty(t, a.Errors)
}

func TestValidateProfessionalCredentials_UnrestrictedRoleMalformedLicenseWarns(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("OTHER", "not-a-license", "Hospital X")

	assert.True(t, a.IsValid)
	assert.NotEmpty(t, a.Warnings)
}

func TestValidateProfessionalCredentials_MissingInstitutionAlwaysWarns(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.ValidateProfessionalCredentials("OTHER", "", "")
	assert.True(t, a.IsValid)

	found := false
	for _, w := range a.Warnings {
		if w == "no institution name provided" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVerifyProfessionalCredentials_NotFoundOverridesFormatValid(t *testing.T) {
	svc := newTrustService(registryNotFound())

	a := svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "1234 567", "Maria Lopez", "Hospital X")

	assert.False(t, a.IsValid)
	assert.False(t, a.IsVerified)
	require.NotEmpty(t, a.Errors)
	assert.Contains(t, a.Errors[0], "not found")
	require.NotNil(t, a.RegistryDetails)
	assert.False(t, a.RegistryDetails.Found)
}

func TestVerifyProfessionalCredentials_FoundHealthProfessional(t *testing.T) {
	match := true
	svc := newTrustService(registryFound("Doctor of Medicine", &match))

	a := svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "1234567", "Maria Lopez", "Hospital X")

	assert.True(t, a.IsValid)
	assert.True(t, a.IsVerified)
	require.NotNil(t, a.RegistryDetails)
	assert.True(t, a.RegistryDetails.Found)
	assert.True(t, a.RegistryDetails.IsHealthProfessional)
	assert.Equal(t, "Maria Lopez", a.RegistryDetails.ProfessionalName)
}

func TestVerifyProfessionalCredentials_NonHealthTitleWarnsOnly(t *testing.T) {
	svc := newTrustService(registryFound("Civil Engineer", nil))

	a := svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "1234567", "", "Hospital X")

	assert.True(t, a.IsValid)
	assert.True(t, a.IsVerified)
	assert.NotEmpty(t, a.Warnings)
}

func TestVerifyProfessionalCredentials_NameMismatchWarnsOnly(t *testing.T) {
	mismatch := false
	svc := newTrustService(registryFound("Doctor of Medicine", &mismatch))

	a := svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "1234567", "Juan Perez", "Hospital X")

	assert.True(t, a.IsValid)
	assert.True(t, a.IsVerified)

	found := false
	for _, w := range a.Warnings {
		if w == "claimed name does not match the registry record" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestVerifyProfessionalCredentials_RegistryDownKeepsFormatOnlyResult(t *testing.T) {
	svc := newTrustService(registryDown())

	a := svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "1234567", "Maria", "")

	assert.True(t, a.IsValid)
	assert.False(t, a.IsVerified)
	assert.Nil(t, a.RegistryDetails)
}

func TestVerifyProfessionalCredentials_NoUsableLicenseSkipsRegistry(t *testing.T) {
	called := false
	reg := &MockRegistryVerifier{
		VerifyHealthProfessionalFunc: func(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
			called = true
			return nil
		},
	}
	svc := newTrustService(reg)

	a := svc.VerifyProfessionalCredentials(context.Background(), "NURSE", "", "", "")
	assert.True(t, a.IsValid)
	assert.False(t, called)

	a = svc.VerifyProfessionalCredentials(context.Background(), "DOCTOR", "bad", "", "")
	assert.False(t, a.IsValid)
	assert.False(t, called)
}

func TestAccessTrustLevel_FormatOnlyMapping(t *testing.T) {
	svc := newTrustService(registryDown())

	tests := []struct {
		name        string
		role        string
		license     string
		institution string
		expected    models.TrustLevel
	}{
		{"doctor no credentials", "DOCTOR", "", "", models.TrustUnverified},
		{"doctor license and institution", "DOCTOR", "1234567", "Hospital X", models.TrustHigh},
		{"doctor license only", "DOCTOR", "1234567", "", models.TrustMedium},
		{"doctor malformed license", "DOCTOR", "12ab", "Hospital X", models.TrustUnverified},
		{"nurse license and institution", "NURSE", "1234567", "Hospital X", models.TrustHigh},
		{"nurse institution only", "NURSE", "", "Hospital X", models.TrustMedium},
		{"nurse nothing", "NURSE", "", "", models.TrustLow},
		{"other with institution", "OTHER", "", "Hospital General", models.TrustLow},
		{"other nothing", "OTHER", "", "", models.TrustUnverified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.AccessTrustLevel(tt.role, tt.license, tt.institution))
		})
	}
}

func TestAccessTrustLevelContext_VerifiedCeiling(t *testing.T) {
	match := true
	svc := newTrustService(registryFound("Doctor of Medicine", &match))

	level := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "Maria Lopez", "Hospital X")
	assert.Equal(t, models.TrustVerified, level)
}

func TestAccessTrustLevelContext_UnknownNameStillVerified(t *testing.T) {
	svc := newTrustService(registryFound("Doctor of Medicine", nil))

	level := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "", "")
	assert.Equal(t, models.TrustVerified, level)
}

func TestAccessTrustLevelContext_FoundWithWarningsIsHigh(t *testing.T) {
	mismatch := false
	svc := newTrustService(registryFound("Doctor of Medicine", &mismatch))

	level := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "Juan Perez", "Hospital X")
	assert.Equal(t, models.TrustHigh, level)
}

func TestAccessTrustLevelContext_RegistryDownFallsBackToFormat(t *testing.T) {
	svc := newTrustService(registryDown())

	withInstitution := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "", "Hospital X")
	assert.Equal(t, models.TrustMedium, withInstitution)

	withoutInstitution := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "", "")
	assert.Equal(t, models.TrustLow, withoutInstitution)
}

func TestAccessTrustLevelContext_NotFoundIsUnverified(t *testing.T) {
	svc := newTrustService(registryNotFound())

	level := svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "1234567", "Maria", "Hospital X")
	assert.Equal(t, models.TrustUnverified, level)
}

func TestAccessTrustLevelContext_NoLicense(t *testing.T) {
	svc := newTrustService(registryDown())

	assert.Equal(t, models.TrustUnverified,
		svc.AccessTrustLevelContext(context.Background(), "DOCTOR", "", "", ""))
	assert.Equal(t, models.TrustLow,
		svc.AccessTrustLevelContext(context.Background(), "OTHER", "", "", ""))
}
