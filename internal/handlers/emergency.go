package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/services"
	pkghttp "github.com/vida-health/vida/pkg/http"
	pkglogger "github.com/vida-health/vida/pkg/logger"
)

// EmergencyServiceInterface defines the emergency-access business logic
type EmergencyServiceInterface interface {
	AccessEmergencyProfile(ctx context.Context, input services.EmergencyAccessInput) (*services.EmergencyAccessResult, error)
	VerifyAccessToken(ctx context.Context, token string) (*services.TokenStatus, error)
}

// EmergencyHandler handles anonymous emergency-access HTTP requests
type EmergencyHandler struct {
	service  EmergencyServiceInterface
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
}

func NewEmergencyHandler(service EmergencyServiceInterface, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *EmergencyHandler {
	return &EmergencyHandler{
		service:  service,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// EmergencyAccessRequest represents the request body for emergency access
type EmergencyAccessRequest struct {
	QRToken         string   `json:"qr_token" validate:"required,uuid"`
	AccessorName    string   `json:"accessor_name" validate:"required,max=100"`
	AccessorRole    string   `json:"accessor_role" validate:"required,max=50"`
	LicenseNumber   string   `json:"license_number" validate:"max=50"`
	InstitutionName string   `json:"institution_name" validate:"max=200"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	LocationName    string   `json:"location_name" validate:"max=200"`
}

// Access handles POST /emergency/access. Denials stay deliberately vague: the
// response never says whether the token or the credentials were the problem.
func (h *EmergencyHandler) Access(w http.ResponseWriter, r *http.Request) {
	var req EmergencyAccessRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	input := services.EmergencyAccessInput{
		QRToken:         strings.TrimSpace(req.QRToken),
		AccessorName:    strings.TrimSpace(req.AccessorName),
		AccessorRole:    strings.TrimSpace(req.AccessorRole),
		LicenseNumber:   req.LicenseNumber,
		InstitutionName: strings.TrimSpace(req.InstitutionName),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		LocationName:    strings.TrimSpace(req.LocationName),
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
	}

	result, err := h.service.AccessEmergencyProfile(r.Context(), input)
	if err != nil {
		h.audit.LogEmergencyAccess(pkglogger.AuditEvent{
			EventType:     "emergency_access_denied",
			AccessorRole:  input.AccessorRole,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: err.Error(),
		})

		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid request")
		case errors.Is(err, models.ErrAccessDenied):
			pkghttp.WriteForbidden(w, "Access denied")
		case errors.Is(err, models.ErrRateLimitExceeded):
			pkghttp.WriteTooManyRequests(w, "Too many requests")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	h.audit.LogEmergencyAccess(pkglogger.AuditEvent{
		EventType:    "emergency_access_granted",
		PatientID:    result.Profile.PatientID,
		AccessorRole: input.AccessorRole,
		TrustLevel:   result.TrustLevel.String(),
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Success:      true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// VerifyToken handles GET /emergency/token/{token}
func (h *EmergencyHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	status, err := h.service.VerifyAccessToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid token")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Token not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
