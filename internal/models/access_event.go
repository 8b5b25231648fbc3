package models

import "time"

// AccessEvent records one emergency-access attempt against a patient profile.
// Persisted by the access-event repository so patients and representatives can
// audit who viewed the profile and with what assurance.
type AccessEvent struct {
	ID              string     `json:"id"`
	PatientID       *string    `json:"patient_id,omitempty"`
	AccessToken     string     `json:"-"`
	AccessorName    string     `json:"accessor_name"`
	AccessorRole    string     `json:"accessor_role"`
	LicenseNumber   *string    `json:"license_number,omitempty"`
	InstitutionName *string    `json:"institution_name,omitempty"`
	TrustLevel      string     `json:"trust_level"`
	Warnings        []string   `json:"warnings,omitempty"`
	Granted         bool       `json:"granted"`
	DenyReason      *string    `json:"deny_reason,omitempty"`
	IPAddress       string     `json:"-"`
	UserAgent       string     `json:"-"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	LocationName    *string    `json:"location_name,omitempty"`
	AccessedAt      time.Time  `json:"accessed_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	NotifiedAt      *time.Time `json:"notified_at,omitempty"`
}
