package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vida-health/vida/internal/database"
	"github.com/vida-health/vida/internal/models"
)

type PatientRepository struct {
	pool *pgxpool.Pool
}

func NewPatientRepository(db *database.DB) *PatientRepository {
	return &PatientRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const patientColumns = `id, email, password_hash, full_name, qr_token, blood_type, allergies, conditions, medications, directives, emergency_note, mfa_enabled, mfa_secret, created_at, updated_at, deleted_at`

// scanPatientRow handles nullable fields and populates a Patient model from a database row
func scanPatientRow(scanner rowScanner) (*models.Patient, error) {
	var p models.Patient
	var bloodType, directives, emergencyNote, mfaSecret *string

	err := scanner.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.QRToken,
		&bloodType, &p.Allergies, &p.Conditions, &p.Medications,
		&directives, &emergencyNote, &p.MFAEnabled, &mfaSecret,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if bloodType != nil {
		p.BloodType = *bloodType
	}
	if directives != nil {
		p.Directives = *directives
	}
	if emergencyNote != nil {
		p.EmergencyNote = *emergencyNote
	}
	if mfaSecret != nil {
		p.MFASecret = *mfaSecret
	}

	return &p, nil
}

func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	patient.ID = uuid.New().String()
	patient.QRToken = uuid.New().String()

	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	query := `
		INSERT INTO patients (id, email, password_hash, full_name, qr_token, blood_type, allergies, conditions, medications, directives, emergency_note, mfa_enabled, mfa_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + patientColumns

	created, err := scanPatientRow(r.pool.QueryRow(ctx, query,
		patient.ID, patient.Email, patient.PasswordHash, patient.FullName, patient.QRToken,
		nullable(patient.BloodType), patient.Allergies, patient.Conditions, patient.Medications,
		nullable(patient.Directives), nullable(patient.EmergencyNote),
		patient.MFAEnabled, nullable(patient.MFASecret),
		patient.CreatedAt, patient.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND deleted_at IS NULL`

	return scanPatientRow(r.pool.QueryRow(ctx, query, id))
}

func (r *PatientRepository) GetByEmail(ctx context.Context, email string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE email = $1 AND deleted_at IS NULL`

	return scanPatientRow(r.pool.QueryRow(ctx, query, email))
}

func (r *PatientRepository) GetByQRToken(ctx context.Context, qrToken string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE qr_token = $1 AND deleted_at IS NULL`

	return scanPatientRow(r.pool.QueryRow(ctx, query, qrToken))
}

// RotateQRToken replaces the patient's QR token with a fresh one, invalidating
// printed QR codes that carried the old token.
func (r *PatientRepository) RotateQRToken(ctx context.Context, patientID string) (string, error) {
	newToken := uuid.New().String()

	query := `
		UPDATE patients SET qr_token = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, newToken, time.Now(), patientID)
	if err != nil {
		return "", database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return "", models.ErrNotFound
	}

	return newToken, nil
}

func (r *PatientRepository) UpdateProfile(ctx context.Context, patient *models.Patient) (*models.Patient, error) {
	patient.UpdatedAt = time.Now()

	query := `
		UPDATE patients SET full_name = $1, blood_type = $2, allergies = $3, conditions = $4, medications = $5, directives = $6, emergency_note = $7, updated_at = $8
		WHERE id = $9 AND deleted_at IS NULL
		RETURNING ` + patientColumns

	return scanPatientRow(r.pool.QueryRow(ctx, query,
		patient.FullName, nullable(patient.BloodType),
		patient.Allergies, patient.Conditions, patient.Medications,
		nullable(patient.Directives), nullable(patient.EmergencyNote),
		patient.UpdatedAt, patient.ID,
	))
}

func (r *PatientRepository) SetMFA(ctx context.Context, patientID, secret string, enabled bool) error {
	query := `
		UPDATE patients SET mfa_secret = $1, mfa_enabled = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, nullable(secret), enabled, time.Now(), patientID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PatientRepository) Delete(ctx context.Context, patientID string) error {
	query := `UPDATE patients SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, time.Now(), patientID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ListRepresentatives returns the representatives registered for a patient.
func (r *PatientRepository) ListRepresentatives(ctx context.Context, patientID string) ([]*models.Representative, error) {
	query := `
		SELECT id, patient_id, full_name, email, phone, relation, notify, created_at
		FROM representatives WHERE patient_id = $1 ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query representatives: %w", err)
	}

	return scanRepresentativeRows(rows)
}

func (r *PatientRepository) AddRepresentative(ctx context.Context, rep *models.Representative) (*models.Representative, error) {
	rep.ID = uuid.New().String()
	rep.CreatedAt = time.Now()

	query := `
		INSERT INTO representatives (id, patient_id, full_name, email, phone, relation, notify, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, patient_id, full_name, email, phone, relation, notify, created_at
	`

	return scanRepresentativeRow(r.pool.QueryRow(ctx, query,
		rep.ID, rep.PatientID, rep.FullName,
		nullable(rep.Email), nullable(rep.Phone), nullable(rep.Relation),
		rep.Notify, rep.CreatedAt,
	))
}

func (r *PatientRepository) RemoveRepresentative(ctx context.Context, patientID, repID string) error {
	query := `DELETE FROM representatives WHERE id = $1 AND patient_id = $2`

	result, err := r.pool.Exec(ctx, query, repID, patientID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func scanRepresentativeRow(scanner rowScanner) (*models.Representative, error) {
	var rep models.Representative
	var email, phone, relation *string

	err := scanner.Scan(
		&rep.ID, &rep.PatientID, &rep.FullName,
		&email, &phone, &relation,
		&rep.Notify, &rep.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if email != nil {
		rep.Email = *email
	}
	if phone != nil {
		rep.Phone = *phone
	}
	if relation != nil {
		rep.Relation = *relation
	}

	return &rep, nil
}

func scanRepresentativeRows(rows pgx.Rows) ([]*models.Representative, error) {
	defer rows.Close()

	reps := make([]*models.Representative, 0)

	for rows.Next() {
		rep, err := scanRepresentativeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan representative: %w", err)
		}
		reps = append(reps, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return reps, nil
}

// nullable maps an empty string to a NULL parameter.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
