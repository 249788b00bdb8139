package pipelines

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db       *sql.DB
	tenantID string
}

// NewPostgresStore creates a new PostgreSQL-backed Store for a specific tenant.
func NewPostgresStore(db *sql.DB, tenantID string) *PostgresStore {
	return &PostgresStore{
		db:       db,
		tenantID: tenantID,
	}
}

// Add inserts a new pipeline definition into the database.
func (s *PostgresStore) Add(def *Definition) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM pipelines WHERE id = $1 AND tenant_id = $2)
	`, def.ID, s.tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check pipeline existence: %w", err)
	}
	if exists {
		return fmt.Errorf("pipeline with ID %s already exists", def.ID)
	}

	_, err = s.db.Exec(`
		INSERT INTO pipelines (id, tenant_id, name, priority, definition, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, def.ID, s.tenantID, def.Name, def.Priority, def.Source, def.Active,
		def.CreatedAt, def.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert pipeline: %w", err)
	}

	return nil
}

// Get retrieves a pipeline definition by ID.
func (s *PostgresStore) Get(id string) (*Definition, error) {
	var def Definition
	err := s.db.QueryRow(`
		SELECT id, name, priority, definition, active, created_at, updated_at
		FROM pipelines
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID).Scan(
		&def.ID,
		&def.Name,
		&def.Priority,
		&def.Source,
		&def.Active,
		&def.CreatedAt,
		&def.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	return &def, nil
}

// ListActive returns all active pipeline definitions for the tenant.
func (s *PostgresStore) ListActive() ([]*Definition, error) {
	rows, err := s.db.Query(`
		SELECT id, name, priority, definition, active, created_at, updated_at
		FROM pipelines
		WHERE tenant_id = $1 AND active = true
		ORDER BY priority ASC, created_at ASC
	`, s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active pipelines: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.ID, &d.Name, &d.Priority, &d.Source, &d.Active,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		defs = append(defs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return defs, nil
}

// Update modifies an existing pipeline definition.
func (s *PostgresStore) Update(def *Definition) error {
	_, err := s.Get(def.ID)
	if err != nil {
		return err
	}

	def.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE pipelines
		SET name = $1, priority = $2, definition = $3, active = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7
	`, def.Name, def.Priority, def.Source, def.Active, def.UpdatedAt, def.ID, s.tenantID)

	if err != nil {
		return fmt.Errorf("failed to update pipeline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pipeline %s not found", def.ID)
	}

	return nil
}

// Delete removes a pipeline definition from the database.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM pipelines
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)

	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("pipeline %s not found", id)
	}

	return nil
}
