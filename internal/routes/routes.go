package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/vida-health/vida/internal/auth"
	"github.com/vida-health/vida/internal/config"
	"github.com/vida-health/vida/internal/handlers"
	"github.com/vida-health/vida/internal/middleware"
	"github.com/vida-health/vida/internal/services"
	pkghttp "github.com/vida-health/vida/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	emergencyHandler *handlers.EmergencyHandler,
	patientHandler *handlers.PatientHandler,
	emergencyService *services.EmergencyService,
	tokenManager *auth.TokenManager,
	securityCfg *config.SecurityConfig,
	ipConfig *pkghttp.IPConfig,
) {
	// The anonymous emergency path gets the tightest limit; the read-only
	// token check is cheaper and polled by UIs, so it gets more headroom.
	accessLimit := middleware.RateLimitConfig{
		Requests:  securityCfg.AccessRateLimit,
		Window:    securityCfg.AccessRateWindow,
		OnLimited: emergencyService.RecordRateLimited,
		IPConfig:  ipConfig,
	}
	verifyLimit := middleware.RateLimitConfig{
		Requests: securityCfg.VerifyRateLimit,
		Window:   securityCfg.VerifyRateWindow,
		IPConfig: ipConfig,
	}
	loginLimit := middleware.RateLimitConfig{
		Requests: securityCfg.AccessRateLimit,
		Window:   securityCfg.AccessRateWindow,
		IPConfig: ipConfig,
	}

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(accessLimit)).Post("/emergency/access", emergencyHandler.Access)
	router.With(middleware.RateLimitByIP(verifyLimit)).Get("/emergency/token/{token}", emergencyHandler.VerifyToken)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/patients", patientHandler.Enroll)
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/patients/login", patientHandler.Login)

	// Protected routes - patient session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenManager))

		r.Get("/patients/me", patientHandler.Me)
		r.Put("/patients/me", patientHandler.UpdateProfile)
		r.Get("/patients/me/qr", patientHandler.QRCode)
		r.Post("/patients/me/qr/rotate", patientHandler.RotateQR)
		r.Get("/patients/me/access-events", patientHandler.AccessHistory)

		r.Get("/patients/me/representatives", patientHandler.ListRepresentatives)
		r.Post("/patients/me/representatives", patientHandler.AddRepresentative)
		r.Delete("/patients/me/representatives/{id}", patientHandler.RemoveRepresentative)

		r.Post("/patients/me/mfa/setup", patientHandler.InitiateMFA)
		r.Post("/patients/me/mfa/confirm", patientHandler.ConfirmMFA)
		r.Delete("/patients/me/mfa", patientHandler.DisableMFA)
	})
}
