package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vida-health/vida/internal/database"
	"github.com/vida-health/vida/internal/models"
	"github.com/vida-health/vida/internal/repositories"
	"github.com/vida-health/vida/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer with the schema applied.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("vida"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         &database.DB{Pool: pool},
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"access_events",
		"representatives",
		"patients",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// SeedPatient inserts a patient through the repository so defaults (ID,
// QR token, timestamps) are exercised end to end.
func SeedPatient(ctx context.Context, repo *repositories.PatientRepository, email, password string) (*models.Patient, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return repo.Create(ctx, &models.Patient{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Ana Silva",
		BloodType:    "O+",
		Allergies:    []string{"penicillin"},
		Conditions:   []string{"type 1 diabetes"},
		Medications:  []string{"insulin"},
	})
}
