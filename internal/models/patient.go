package models

import "time"

// Patient is a VIDA account holder with an emergency profile reachable
// through a QR token.
type Patient struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FullName      string     `json:"full_name"`
	QRToken       string     `json:"-"`
	BloodType     string     `json:"blood_type,omitempty"`
	Allergies     []string   `json:"allergies,omitempty"`
	Conditions    []string   `json:"conditions,omitempty"`
	Medications   []string   `json:"medications,omitempty"`
	Directives    string     `json:"directives,omitempty"`
	EmergencyNote string     `json:"emergency_note,omitempty"`
	MFAEnabled    bool       `json:"mfa_enabled"`
	MFASecret     string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

// Representative is a contact notified when a patient's emergency profile
// is accessed.
type Representative struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Relation  string    `json:"relation,omitempty"`
	Notify    bool      `json:"notify"`
	CreatedAt time.Time `json:"created_at"`
}

// EmergencyProfile is the subset of patient data disclosed to an emergency
// accessor. It intentionally excludes account fields.
type EmergencyProfile struct {
	PatientID     string   `json:"patient_id"`
	FullName      string   `json:"full_name"`
	BloodType     string   `json:"blood_type,omitempty"`
	Allergies     []string `json:"allergies,omitempty"`
	Conditions    []string `json:"conditions,omitempty"`
	Medications   []string `json:"medications,omitempty"`
	Directives    string   `json:"directives,omitempty"`
	EmergencyNote string   `json:"emergency_note,omitempty"`
}

// EmergencyProfile projects the disclosable fields of a patient.
func (p *Patient) EmergencyProfile() *EmergencyProfile {
	return &EmergencyProfile{
		PatientID:     p.ID,
		FullName:      p.FullName,
		BloodType:     p.BloodType,
		Allergies:     p.Allergies,
		Conditions:    p.Conditions,
		Medications:   p.Medications,
		Directives:    p.Directives,
		EmergencyNote: p.EmergencyNote,
	}
}
