package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vida-health/vida/internal/license"
	"github.com/vida-health/vida/internal/models"
)

// Role policy membership. Roles are matched after uppercasing; anything not
// listed falls into the unrestricted tier.
var (
	rolesRequiringLicense = map[string]bool{
		"DOCTOR":     true,
		"PHYSICIAN":  true,
		"SURGEON":    true,
		"SPECIALIST": true,
	}

	rolesLicenseRecommended = map[string]bool{
		"NURSE":           true,
		"PARAMEDIC":       true,
		"EMT":             true,
		"MEDICAL_STUDENT": true,
	}
)

// RegistryVerifier is the slice of the registry client the trust service
// depends on.
type RegistryVerifier interface {
	VerifyHealthProfessional(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck
}

// TrustService evaluates the credentials claimed on an emergency-access
// request into a trust assessment and a discrete trust level.
//
// Two parallel paths exist on purpose: the synchronous path never touches the
// network so emergency access stays usable under registry latency or outage,
// while the context path adds the stronger registry-confirmed signal when the
// caller can afford to wait for it.
type TrustService struct {
	registry RegistryVerifier
	logger   *slog.Logger
}

// NewTrustService creates a TrustService.
func NewTrustService(registryClient RegistryVerifier, logger *slog.Logger) *TrustService {
	return &TrustService{
		registry: registryClient,
		logger:   logger,
	}
}

// ClassifyRole maps an accessor role onto its license policy tier.
func (s *TrustService) ClassifyRole(role string) models.RolePolicy {
	normalized := strings.ToUpper(strings.TrimSpace(role))
	switch {
	case rolesRequiringLicense[normalized]:
		return models.RequiresLicense
	case rolesLicenseRecommended[normalized]:
		return models.LicenseRecommended
	default:
		return models.NoLicenseRequired
	}
}

// ValidateProfessionalCredentials performs the synchronous, I/O-free
// credential check: role policy plus license format. A passing result still
// carries IsVerified=false; only the registry can verify.
func (s *TrustService) ValidateProfessionalCredentials(role, rawLicense, institutionName string) *models.TrustAssessment {
	policy := s.ClassifyRole(role)

	assessment := &models.TrustAssessment{
		IsValid:            true,
		RequiresLicense:    policy == models.RequiresLicense,
		LicenseRecommended: policy == models.LicenseRecommended,
		Warnings:           []string{},
		Errors:             []string{},
	}

	trimmed := strings.TrimSpace(rawLicense)

	switch policy {
	case models.RequiresLicense:
		if trimmed == "" {
			assessment.AddError(models.ErrLicenseRequired.Error())
			break
		}
		if _, ok := license.Validate(trimmed); !ok {
			assessment.AddError(models.ErrInvalidLicenseFormat.Error())
			break
		}
		assessment.AddWarning("license format checked only; registry verification recommended")

	case models.LicenseRecommended:
		if trimmed == "" {
			assessment.AddWarning("a professional license is recommended for this role")
			break
		}
		if _, ok := license.Validate(trimmed); !ok {
			assessment.AddWarning("supplied license number is malformed and was ignored")
		}

	default:
		// A license volunteered for an unrestricted role is checked
		// defensively but malformed input never blocks.
		if trimmed != "" {
			if _, ok := license.Validate(trimmed); !ok {
				assessment.AddWarning("supplied license number is malformed and was ignored")
			}
		}
	}

	if strings.TrimSpace(institutionName) == "" {
		assessment.AddWarning("no institution name provided")
	}

	return assessment
}

// VerifyProfessionalCredentials runs the synchronous check and then, when a
// usable license is present, consults the registry. An authoritative
// "not found" overrides the earlier format-valid result into a hard error;
// every other registry outcome only adds warnings. Warnings never block an
// emergency request.
func (s *TrustService) VerifyProfessionalCredentials(ctx context.Context, role, rawLicense, claimedName, institutionName string) *models.TrustAssessment {
	assessment := s.ValidateProfessionalCredentials(role, rawLicense, institutionName)

	normalized, formatOK := license.Validate(rawLicense)
	if normalized == "" || !formatOK {
		return assessment
	}

	check := s.registry.VerifyHealthProfessional(ctx, normalized, claimedName)
	details := check.Details

	switch {
	case details.IsVerified && !details.IsValid:
		// Registry was reached and affirmatively rejects the number.
		assessment.AddError(models.ErrLicenseNotInRegistry.Error())
		assessment.RegistryDetails = &models.RegistryDetails{Found: false}

	case details.IsVerified && details.Record != nil:
		assessment.IsVerified = true
		assessment.RegistryDetails = &models.RegistryDetails{
			Found:                true,
			ProfessionalName:     details.Record.FullName(),
			Title:                details.Record.Title,
			Institution:          details.Record.Institution,
			YearRegistered:       details.Record.Year,
			IsHealthProfessional: check.IsHealthProfessional,
			NameMatches:          check.MatchesName,
		}
		if !check.IsHealthProfessional {
			assessment.AddWarning("registry title is not a recognized health profession")
		}
		if check.MatchesName != nil && !*check.MatchesName {
			assessment.AddWarning("claimed name does not match the registry record")
		}

	default:
		// Registry unavailable or disabled: keep the format-only result.
		assessment.AddWarning("registry verification unavailable; license checked by format only")
		if details.Error != "" {
			s.logger.Warn("credential verification degraded",
				slog.String("role", role),
				slog.String("error", details.Error),
			)
		}
	}

	return assessment
}

// AccessTrustLevel computes the trust level on a format-only basis, with no
// I/O. VERIFIED is unreachable on this path.
func (s *TrustService) AccessTrustLevel(role, rawLicense, institutionName string) models.TrustLevel {
	policy := s.ClassifyRole(role)
	_, licenseOK := license.Validate(rawLicense)
	hasInstitution := strings.TrimSpace(institutionName) != ""

	switch policy {
	case models.RequiresLicense:
		switch {
		case licenseOK && hasInstitution:
			return models.TrustHigh
		case licenseOK:
			return models.TrustMedium
		default:
			return models.TrustUnverified
		}

	case models.LicenseRecommended:
		switch {
		case licenseOK && hasInstitution:
			return models.TrustHigh
		case hasInstitution:
			return models.TrustMedium
		default:
			return models.TrustLow
		}

	default:
		if hasInstitution {
			return models.TrustLow
		}
		return models.TrustUnverified
	}
}

// AccessTrustLevelContext computes the trust level with registry
// confirmation. VERIFIED is the ceiling and is only reachable through a live
// registry hit on a health-professional title whose name does not contradict
// the claim.
func (s *TrustService) AccessTrustLevelContext(ctx context.Context, role, rawLicense, claimedName, institutionName string) models.TrustLevel {
	if strings.TrimSpace(rawLicense) == "" {
		if s.ClassifyRole(role) == models.RequiresLicense {
			return models.TrustUnverified
		}
		return models.TrustLow
	}

	assessment := s.VerifyProfessionalCredentials(ctx, role, rawLicense, claimedName, institutionName)
	return s.TrustLevelForAssessment(assessment, role, rawLicense, institutionName)
}

// TrustLevelForAssessment maps an already-computed assessment onto a trust
// level. Callers that hold a fresh assessment (the emergency orchestrator)
// use this to avoid a second registry round trip.
func (s *TrustService) TrustLevelForAssessment(assessment *models.TrustAssessment, role, rawLicense, institutionName string) models.TrustLevel {
	if strings.TrimSpace(rawLicense) == "" {
		if s.ClassifyRole(role) == models.RequiresLicense {
			return models.TrustUnverified
		}
		return models.TrustLow
	}

	details := assessment.RegistryDetails
	switch {
	case details != nil && details.Found:
		if details.IsHealthProfessional && (details.NameMatches == nil || *details.NameMatches) {
			return models.TrustVerified
		}
		return models.TrustHigh

	case assessment.IsValid && !assessment.IsVerified:
		// Format-valid but verification unavailable or declined.
		if strings.TrimSpace(institutionName) != "" {
			return models.TrustMedium
		}
		return models.TrustLow

	default:
		return models.TrustUnverified
	}
}
