// Package testutil provides testing utilities for the stockflow backend.
// It includes a testcontainers PostgreSQL wrapper, sqlmock helpers and
// common fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "stockflow_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "stockflow_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateStockSchema creates the full stock service schema.
// This mirrors the migrations applied by the deployment pipeline.
func (c *PostgresContainer) CreateStockSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS stock_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			product_name VARCHAR(255) NOT NULL,
			lot_number VARCHAR(64) NOT NULL DEFAULT '',
			item_kind VARCHAR(20) NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit VARCHAR(16) NOT NULL DEFAULT 'kg',
			location_code VARCHAR(64) NOT NULL,
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			block_reason TEXT,
			blocked_by UUID,
			blocked_at TIMESTAMPTZ,
			expiry_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT item_kind_valid CHECK (item_kind IN ('raw_material', 'finished_good', 'packaging'))
		);

		CREATE INDEX IF NOT EXISTS idx_stock_items_product
			ON stock_items (product_name);
		CREATE INDEX IF NOT EXISTS idx_stock_items_location
			ON stock_items (location_code);

		-- Append-only. Rows are never updated or deleted.
		CREATE TABLE IF NOT EXISTS location_history (
			id BIGSERIAL PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES stock_items(id),
			previous_location VARCHAR(64) NOT NULL,
			target_location VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			moved_by UUID NOT NULL,
			moved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_location_history_item
			ON location_history (item_id, id);

		CREATE TABLE IF NOT EXISTS consumption_records (
			id UUID PRIMARY KEY,
			batch_id VARCHAR(64) NOT NULL,
			item_id UUID NOT NULL REFERENCES stock_items(id),
			product_name VARCHAR(255) NOT NULL,
			requested_quantity DOUBLE PRECISION NOT NULL,
			consumed_quantity DOUBLE PRECISION NOT NULL,
			clamped BOOLEAN NOT NULL DEFAULT FALSE,
			archived_item BOOLEAN NOT NULL DEFAULT FALSE,
			source_location VARCHAR(64) NOT NULL,
			is_annulled BOOLEAN NOT NULL DEFAULT FALSE,
			is_adjustment BOOLEAN NOT NULL DEFAULT FALSE,
			performed_by UUID NOT NULL,
			consumed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			annulled_by UUID,
			annulled_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_consumption_records_batch
			ON consumption_records (batch_id);
		CREATE INDEX IF NOT EXISTS idx_consumption_records_item
			ON consumption_records (item_id);

		CREATE TABLE IF NOT EXISTS inventory_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'ongoing',
			started_by UUID NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_by UUID,
			completed_at TIMESTAMPTZ,
			adjustments_applied_by UUID,
			adjustments_applied_at TIMESTAMPTZ,
			CONSTRAINT session_status_valid CHECK (status IN ('ongoing', 'completed'))
		);

		CREATE TABLE IF NOT EXISTS session_locations (
			session_id UUID NOT NULL REFERENCES inventory_sessions(id),
			location_code VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			finished_by UUID,
			finished_at TIMESTAMPTZ,
			PRIMARY KEY (session_id, location_code),
			CONSTRAINT location_status_valid CHECK (status IN ('pending', 'scanned'))
		);

		CREATE TABLE IF NOT EXISTS session_scans (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id UUID NOT NULL REFERENCES inventory_sessions(id),
			location_code VARCHAR(64) NOT NULL,
			item_id UUID NOT NULL REFERENCES stock_items(id),
			expected_quantity DOUBLE PRECISION NOT NULL,
			counted_quantity DOUBLE PRECISION NOT NULL,
			forced BOOLEAN NOT NULL DEFAULT FALSE,
			scanned_by UUID NOT NULL,
			scanned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT session_scans_location_item_unique UNIQUE (session_id, location_code, item_id)
		);

		CREATE TABLE IF NOT EXISTS recipes (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			batch_weight DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS recipe_lines (
			recipe_id UUID NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
			product_name VARCHAR(255) NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			unit VARCHAR(16) NOT NULL DEFAULT 'kg',
			PRIMARY KEY (recipe_id, product_name)
		);

		CREATE TABLE IF NOT EXISTS planned_orders (
			id UUID PRIMARY KEY,
			recipe_id UUID NOT NULL,
			order_kind VARCHAR(20) NOT NULL DEFAULT 'production',
			target_quantity DOUBLE PRECISION NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'planned',
			planned_for TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_planned_orders_status
			ON planned_orders (status);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create stock schema: %w", err)
	}

	return nil
}
