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

type AccessEventRepository struct {
	pool *pgxpool.Pool
}

func NewAccessEventRepository(db *database.DB) *AccessEventRepository {
	return &AccessEventRepository{pool: db.Pool}
}

const accessEventColumns = `id, patient_id, access_token, accessor_name, accessor_role, license_number, institution_name, trust_level, warnings, granted, deny_reason, ip_address, user_agent, latitude, longitude, location_name, accessed_at, expires_at, notified_at`

func scanAccessEventRow(scanner rowScanner) (*models.AccessEvent, error) {
	var e models.AccessEvent

	err := scanner.Scan(
		&e.ID, &e.PatientID, &e.AccessToken, &e.AccessorName, &e.AccessorRole,
		&e.LicenseNumber, &e.InstitutionName, &e.TrustLevel, &e.Warnings,
		&e.Granted, &e.DenyReason, &e.IPAddress, &e.UserAgent,
		&e.Latitude, &e.Longitude, &e.LocationName,
		&e.AccessedAt, &e.ExpiresAt, &e.NotifiedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

func scanAccessEventRows(rows pgx.Rows) ([]*models.AccessEvent, error) {
	defer rows.Close()

	events := make([]*models.AccessEvent, 0)

	for rows.Next() {
		event, err := scanAccessEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

func (r *AccessEventRepository) Create(ctx context.Context, event *models.AccessEvent) (*models.AccessEvent, error) {
	event.ID = uuid.New().String()

	query := `
		INSERT INTO access_events (id, patient_id, access_token, accessor_name, accessor_role, license_number, institution_name, trust_level, warnings, granted, deny_reason, ip_address, user_agent, latitude, longitude, location_name, accessed_at, expires_at, notified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING ` + accessEventColumns

	return scanAccessEventRow(r.pool.QueryRow(ctx, query,
		event.ID, event.PatientID, event.AccessToken, event.AccessorName, event.AccessorRole,
		event.LicenseNumber, event.InstitutionName, event.TrustLevel, event.Warnings,
		event.Granted, event.DenyReason, event.IPAddress, event.UserAgent,
		event.Latitude, event.Longitude, event.LocationName,
		event.AccessedAt, event.ExpiresAt, event.NotifiedAt,
	))
}

func (r *AccessEventRepository) GetByAccessToken(ctx context.Context, token string) (*models.AccessEvent, error) {
	query := `SELECT ` + accessEventColumns + ` FROM access_events WHERE access_token = $1`

	return scanAccessEventRow(r.pool.QueryRow(ctx, query, token))
}

func (r *AccessEventRepository) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*models.AccessEvent, error) {
	query := `
		SELECT ` + accessEventColumns + `
		FROM access_events WHERE patient_id = $1
		ORDER BY accessed_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query access events: %w", err)
	}

	return scanAccessEventRows(rows)
}

func (r *AccessEventRepository) MarkNotified(ctx context.Context, eventID string) error {
	query := `UPDATE access_events SET notified_at = $1 WHERE id = $2 AND notified_at IS NULL`

	result, err := r.pool.Exec(ctx, query, time.Now(), eventID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CleanupExpired deletes denied access events whose tokens have been expired
// longer than the retention window. Granted events are kept for the patient's
// audit history.
func (r *AccessEventRepository) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM access_events WHERE granted = false AND expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
