package models

// TrustLevel is the discrete assurance tier attached to an emergency-access
// attempt. Levels are totally ordered: Unverified < Low < Medium < High < Verified.
type TrustLevel int

const (
	TrustUnverified TrustLevel = iota
	TrustLow
	TrustMedium
	TrustHigh
	TrustVerified
)

// String returns the wire representation of the trust level.
func (t TrustLevel) String() string {
	switch t {
	case TrustVerified:
		return "VERIFIED"
	case TrustHigh:
		return "HIGH"
	case TrustMedium:
		return "MEDIUM"
	case TrustLow:
		return "LOW"
	default:
		return "UNVERIFIED"
	}
}

// MarshalJSON encodes the trust level as its string form.
func (t TrustLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// RolePolicy classifies an accessor role by its license requirement.
type RolePolicy int

const (
	NoLicenseRequired RolePolicy = iota
	LicenseRecommended
	RequiresLicense
)

// RegistryDetails summarizes the outcome of a live registry lookup for
// inclusion in a trust assessment.
type RegistryDetails struct {
	Found                bool   `json:"found"`
	ProfessionalName     string `json:"professional_name,omitempty"`
	Title                string `json:"title,omitempty"`
	Institution          string `json:"institution,omitempty"`
	YearRegistered       string `json:"year_registered,omitempty"`
	IsHealthProfessional bool   `json:"is_health_professional"`
	NameMatches          *bool  `json:"name_matches,omitempty"`
}

// TrustAssessment is the per-request result of credential evaluation. It is
// derived on every access attempt and never persisted directly; only the
// resulting trust level travels with the access event.
type TrustAssessment struct {
	IsValid            bool             `json:"is_valid"`
	IsVerified         bool             `json:"is_verified"`
	RequiresLicense    bool             `json:"requires_license"`
	LicenseRecommended bool             `json:"license_recommended"`
	Warnings           []string         `json:"warnings"`
	Errors             []string         `json:"errors"`
	RegistryDetails    *RegistryDetails `json:"registry_details,omitempty"`
}

// AddWarning appends a non-blocking warning to the assessment.
func (a *TrustAssessment) AddWarning(msg string) {
	a.Warnings = append(a.Warnings, msg)
}

// AddError appends a hard error and marks the assessment invalid.
func (a *TrustAssessment) AddError(msg string) {
	a.Errors = append(a.Errors, msg)
	a.IsValid = false
}
