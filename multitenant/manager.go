package multitenant

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sigmaproc/sigmaproc/pipelines"
)

// StoreFactory creates a pipeline definition store scoped to a tenant.
type StoreFactory func(tenantID string) pipelines.Store

// TenantEngine wraps a pipelines.Engine with tenant-specific metadata.
type TenantEngine struct {
	TenantID string
	Engine   *pipelines.Engine
}

// Manager manages pipeline engines for all tenants. Each tenant gets
// its own engine over a tenant-scoped store; engine swaps on reload are
// atomic so in-flight transforms keep using the engine they started with.
type Manager struct {
	engines map[string]*TenantEngine
	db      *sql.DB
	factory StoreFactory
	mu      sync.RWMutex
}

// NewManager creates a manager whose tenants are backed by PostgreSQL.
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		engines: make(map[string]*TenantEngine),
		db:      db,
		factory: func(tenantID string) pipelines.Store {
			return pipelines.NewPostgresStore(db, tenantID)
		},
	}
}

// NewManagerWithFactory creates a manager with a custom store factory.
// This allows tests and embedded deployments to use in-memory stores.
func NewManagerWithFactory(factory StoreFactory) *Manager {
	return &Manager{
		engines: make(map[string]*TenantEngine),
		factory: factory,
	}
}

// LoadAllTenants loads all tenants from the database and initializes
// their engines.
func (m *Manager) LoadAllTenants() error {
	if m.db == nil {
		return fmt.Errorf("manager has no database connection")
	}

	rows, err := m.db.Query(`SELECT id FROM tenants`)
	if err != nil {
		return fmt.Errorf("failed to fetch tenants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return fmt.Errorf("failed to scan tenant row: %w", err)
		}

		if err := m.CreateTenant(tenantID); err != nil {
			return fmt.Errorf("failed to initialize tenant %s: %w", tenantID, err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating tenant rows: %w", err)
	}

	return nil
}

// CreateTenant creates a new tenant engine, compiling the tenant's
// active pipeline definitions.
func (m *Manager) CreateTenant(tenantID string) error {
	store := m.factory(tenantID)

	engine, err := pipelines.NewEngine(store)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	m.engines[tenantID] = &TenantEngine{
		TenantID: tenantID,
		Engine:   engine,
	}
	m.mu.Unlock()

	return nil
}

// GetEngine retrieves the engine for a specific tenant.
func (m *Manager) GetEngine(tenantID string) (*pipelines.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	te, exists := m.engines[tenantID]
	if !exists {
		return nil, fmt.Errorf("tenant %s not found", tenantID)
	}

	return te.Engine, nil
}

// ReloadTenant rebuilds a tenant's engine from the store and atomically
// swaps it in. Zero downtime: readers keep the old engine until the
// swap completes.
func (m *Manager) ReloadTenant(tenantID string) error {
	m.mu.RLock()
	_, exists := m.engines[tenantID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("tenant %s not found", tenantID)
	}

	store := m.factory(tenantID)
	newEngine, err := pipelines.NewEngine(store)
	if err != nil {
		return fmt.Errorf("failed to rebuild engine: %w", err)
	}

	m.mu.Lock()
	m.engines[tenantID] = &TenantEngine{
		TenantID: tenantID,
		Engine:   newEngine,
	}
	m.mu.Unlock()

	return nil
}

// ListTenants returns all loaded tenant IDs.
func (m *Manager) ListTenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]string, 0, len(m.engines))
	for tenantID := range m.engines {
		tenants = append(tenants, tenantID)
	}
	return tenants
}

// DeleteTenant removes a tenant's engine from the manager.
// Note: This does not delete the tenant from the database.
func (m *Manager) DeleteTenant(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[tenantID]; !exists {
		return fmt.Errorf("tenant %s not found", tenantID)
	}

	delete(m.engines, tenantID)
	return nil
}
