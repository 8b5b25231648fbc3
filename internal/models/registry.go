package models

// VerificationSource identifies how a verification result was produced.
type VerificationSource string

const (
	SourceLiveAPI    VerificationSource = "live_api"
	SourceCache      VerificationSource = "cache"
	SourceFormatOnly VerificationSource = "format_only"
)

// RegistryRecord is an immutable fact returned by the external professional
// registry. Records are created only from registry responses, never mutated,
// and cached verbatim.
type RegistryRecord struct {
	LicenseNumber string  `json:"license_number"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	MaternalName  string  `json:"maternal_name,omitempty"`
	Title         string  `json:"title"`
	Institution   string  `json:"institution,omitempty"`
	Year          string  `json:"year,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	Score         float64 `json:"score,omitempty"`
}

// FullName concatenates the holder's name components in registry order.
func (r *RegistryRecord) FullName() string {
	name := r.FirstName
	if r.LastName != "" {
		name += " " + r.LastName
	}
	if r.MaternalName != "" {
		name += " " + r.MaternalName
	}
	return name
}

// VerificationResult is the outcome of a license verification attempt.
// IsValid reports whether the license is considered well-formed (and, when the
// registry was reached, whether it exists); IsVerified reports whether the
// registry was actually consulted successfully. The two are deliberately
// independent: an unreachable registry yields IsValid=true, IsVerified=false.
type VerificationResult struct {
	IsValid    bool               `json:"is_valid"`
	IsVerified bool               `json:"is_verified"`
	Record     *RegistryRecord    `json:"record,omitempty"`
	MatchScore float64            `json:"match_score,omitempty"`
	Source     VerificationSource `json:"source"`
	Error      string             `json:"error,omitempty"`
}

// HealthProfessionalCheck is the outcome of VerifyHealthProfessional: the
// registry verification plus title classification and the fuzzy name match.
type HealthProfessionalCheck struct {
	IsHealthProfessional bool                `json:"is_health_professional"`
	Specialty            string              `json:"specialty,omitempty"`
	MatchesName          *bool               `json:"matches_name,omitempty"`
	Details              *VerificationResult `json:"details"`
}
