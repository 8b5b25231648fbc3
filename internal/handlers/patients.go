package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vida-health/vida/internal/auth"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/services"
	pkghttp "github.com/vida-health/vida/pkg/http"
	pkglogger "github.com/vida-health/vida/pkg/logger"
)

// AccessHistoryLister serves the patient's access audit trail.
type AccessHistoryLister interface {
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*models.AccessEvent, error)
}

// PatientHandler handles patient account HTTP requests
type PatientHandler struct {
	patients *services.PatientService
	mfa      *services.MFAService
	history  AccessHistoryLister
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
}

func NewPatientHandler(patients *services.PatientService, mfa *services.MFAService, history AccessHistoryLister, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *PatientHandler {
	return &PatientHandler{
		patients: patients,
		mfa:      mfa,
		history:  history,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// Request DTOs

type EnrollRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	FullName    string   `json:"full_name" validate:"required,max=100"`
	BloodType   string   `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies   []string `json:"allergies" validate:"max=50,dive,max=100"`
	Conditions  []string `json:"conditions" validate:"max=50,dive,max=200"`
	Medications []string `json:"medications" validate:"max=50,dive,max=200"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfa_code" validate:"omitempty,len=6"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Patient *models.Patient `json:"patient"`
}

type UpdateProfileRequest struct {
	FullName      string   `json:"full_name" validate:"required,max=100"`
	BloodType     string   `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies     []string `json:"allergies" validate:"max=50,dive,max=100"`
	Conditions    []string `json:"conditions" validate:"max=50,dive,max=200"`
	Medications   []string `json:"medications" validate:"max=50,dive,max=200"`
	Directives    string   `json:"directives" validate:"max=2000"`
	EmergencyNote string   `json:"emergency_note" validate:"max=2000"`
}

type AddRepresentativeRequest struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
	Relation string `json:"relation" validate:"omitempty,max=50"`
	Notify   bool   `json:"notify"`
}

type MFACodeRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// Enroll handles POST /patients
func (h *PatientHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	patient, err := h.patients.Enroll(r.Context(), services.EnrollInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    strings.TrimSpace(req.FullName),
		BloodType:   req.BloodType,
		Allergies:   req.Allergies,
		Conditions:  req.Conditions,
		Medications: req.Medications,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid enrollment data")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, patient)
}

// Login handles POST /patients/login
func (h *PatientHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	token, patient, err := h.patients.Login(r.Context(), req.Email, req.Password, ipAddress)
	if err != nil {
		h.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login",
			IPAddress:     ipAddress,
			Success:       false,
			FailureReason: "invalid credentials",
		})
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	// MFA-enabled accounts must supply a code with the password.
	if patient.MFAEnabled {
		if req.MFACode == "" {
			pkghttp.WriteUnauthorized(w, "MFA code required")
			return
		}
		if err := h.mfa.VerifyCode(r.Context(), patient.ID, req.MFACode); err != nil {
			h.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login",
				PatientID:     patient.ID,
				IPAddress:     ipAddress,
				Success:       false,
				FailureReason: "invalid MFA code",
			})
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
	}

	h.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login",
		PatientID: patient.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, Patient: patient})
}

// Me handles GET /patients/me
func (h *PatientHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	patient, err := h.patients.GetByID(r.Context(), claims.PatientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Patient not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, patient)
}

// UpdateProfile handles PUT /patients/me
func (h *PatientHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	patient := &models.Patient{
		ID:            claims.PatientID,
		FullName:      strings.TrimSpace(req.FullName),
		BloodType:     req.BloodType,
		Allergies:     req.Allergies,
		Conditions:    req.Conditions,
		Medications:   req.Medications,
		Directives:    req.Directives,
		EmergencyNote: req.EmergencyNote,
	}

	updated, err := h.patients.UpdateProfile(r.Context(), patient)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Patient not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, updated)
}

// QRCode handles GET /patients/me/qr. Returns a printable PNG.
func (h *PatientHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	size := 256
	if s := r.URL.Query().Get("size"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 64 && parsed <= 1024 {
			size = parsed
		}
	}

	png, err := h.patients.QRCodePNG(r.Context(), claims.PatientID, size)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Patient not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// RotateQR handles POST /patients/me/qr/rotate
func (h *PatientHandler) RotateQR(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	newToken, err := h.patients.RotateQRToken(r.Context(), claims.PatientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Patient not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"qr_token": newToken})
}

// ListRepresentatives handles GET /patients/me/representatives
func (h *PatientHandler) ListRepresentatives(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	reps, err := h.patients.ListRepresentatives(r.Context(), claims.PatientID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, reps)
}

// AddRepresentative handles POST /patients/me/representatives
func (h *PatientHandler) AddRepresentative(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req AddRepresentativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	rep := &models.Representative{
		PatientID: claims.PatientID,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Relation:  req.Relation,
		Notify:    req.Notify,
	}

	created, err := h.patients.AddRepresentative(r.Context(), rep)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, created)
}

// RemoveRepresentative handles DELETE /patients/me/representatives/{id}
func (h *PatientHandler) RemoveRepresentative(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	repID := chi.URLParam(r, "id")

	if err := h.patients.RemoveRepresentative(r.Context(), claims.PatientID, repID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Representative not found")
		} else {
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AccessHistory handles GET /patients/me/access-events
func (h *PatientHandler) AccessHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.history.ListByPatient(r.Context(), claims.PatientID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, events)
}

// InitiateMFA handles POST /patients/me/mfa/setup
func (h *PatientHandler) InitiateMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	setup, err := h.mfa.InitiateSetup(r.Context(), claims.PatientID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Patient not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, setup)
}

// ConfirmMFA handles POST /patients/me/mfa/confirm
func (h *PatientHandler) ConfirmMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFACodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.mfa.ConfirmSetup(r.Context(), claims.PatientID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "No pending MFA setup")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid MFA code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"mfa_enabled": true})
}

// DisableMFA handles DELETE /patients/me/mfa. A valid current code must
// accompany the request.
func (h *PatientHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.PatientFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFACodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.mfa.Disable(r.Context(), claims.PatientID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Invalid MFA code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Patient not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
