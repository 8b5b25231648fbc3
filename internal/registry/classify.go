package registry

import "strings"

// healthKeywords is the fixed vocabulary used to decide whether a registry
// title belongs to a health profession. Matching is case-insensitive
// substring containment; the first hit wins.
var healthKeywords = []string{
	"doctor",
	"physician",
	"medicine",
	"medical",
	"surgeon",
	"surgery",
	"nurse",
	"nursing",
	"paramedic",
	"anesthesiology",
	"cardiology",
	"dermatology",
	"emergency",
	"endocrinology",
	"gastroenterology",
	"geriatrics",
	"gynecology",
	"hematology",
	"infectious disease",
	"internal medicine",
	"nephrology",
	"neurology",
	"obstetrics",
	"oncology",
	"ophthalmology",
	"orthopedics",
	"otolaryngology",
	"pathology",
	"pediatrics",
	"psychiatry",
	"pulmonology",
	"radiology",
	"rheumatology",
	"traumatology",
	"urology",
}

// ClassifyTitle reports whether a professional title is health-related and,
// if so, which vocabulary entry matched.
func ClassifyTitle(title string) (specialty string, isHealth bool) {
	lowered := strings.ToLower(title)
	if lowered == "" {
		return "", false
	}
	for _, keyword := range healthKeywords {
		if strings.Contains(lowered, keyword) {
			return keyword, true
		}
	}
	return "", false
}

// NamesMatch compares the registry holder name against the name claimed by
// the accessor. The comparison is deliberately fuzzy and false-negative
// tolerant: full case-insensitive containment in either direction, or the
// first token of the claimed name appearing in the registry name. A
// transliterated or partially supplied name should not block a legitimate
// responder; occasional false positives are an accepted trade-off and the
// result only ever drives warnings, never denials.
func NamesMatch(registryName, claimedName string) bool {
	reg := strings.ToLower(strings.TrimSpace(registryName))
	claimed := strings.ToLower(strings.TrimSpace(claimedName))
	if reg == "" || claimed == "" {
		return false
	}

	if strings.Contains(reg, claimed) || strings.Contains(claimed, reg) {
		return true
	}

	// Only the first token of the claimed name participates in the reverse
	// check. Common first names can slip through; see NamesMatch doc.
	firstToken := strings.Fields(claimed)[0]
	return strings.Contains(reg, firstToken)
}
