package multitenant

import (
	"testing"

	"github.com/sigmaproc/sigmaproc/pipelines"
	"github.com/sigmaproc/sigmaproc/sigma"
)

const tenantPipelineSource = `
name: windows-endpoint
priority: 20
transformations:
  - id: map-fields
    type: field_mapping_case_insensitive
    mapping:
      commandline: Process.CommandLine
  - id: collect-fields
    type: referenced_fields
`

func inMemoryManager(t *testing.T) (*Manager, map[string]*pipelines.InMemoryStore) {
	t.Helper()
	stores := make(map[string]*pipelines.InMemoryStore)
	m := NewManagerWithFactory(func(tenantID string) pipelines.Store {
		if store, ok := stores[tenantID]; ok {
			return store
		}
		store := pipelines.NewInMemoryStore()
		stores[tenantID] = store
		return store
	})
	return m, stores
}

func TestCreateAndGetTenant(t *testing.T) {
	m, _ := inMemoryManager(t)

	if err := m.CreateTenant("acme"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}

	engine, err := m.GetEngine("acme")
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	if engine == nil {
		t.Fatal("engine should not be nil")
	}
}

func TestGetEngineUnknownTenant(t *testing.T) {
	m, _ := inMemoryManager(t)

	if _, err := m.GetEngine("nobody"); err == nil {
		t.Fatal("expected error for unknown tenant")
	}
}

func TestTenantIsolation(t *testing.T) {
	m, _ := inMemoryManager(t)

	if err := m.CreateTenant("acme"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	if err := m.CreateTenant("globex"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}

	acme, _ := m.GetEngine("acme")
	if err := acme.Add(&pipelines.Definition{ID: "p-1", Name: "windows-endpoint", Source: tenantPipelineSource, Active: true}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	globex, _ := m.GetEngine("globex")
	rule, err := sigma.ParseRule([]byte(`
title: Isolation Test
detection:
    selection:
        CommandLine: 'whoami'
    condition: selection
`))
	if err != nil {
		t.Fatalf("failed to parse rule: %v", err)
	}

	if _, err := globex.Transform("p-1", rule); err == nil {
		t.Error("pipeline added to one tenant must not be visible to another")
	}
}

func TestReloadTenantPicksUpStoreChanges(t *testing.T) {
	m, stores := inMemoryManager(t)

	if err := m.CreateTenant("acme"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}

	// Write a definition behind the engine's back, as an operator
	// editing the database would.
	if err := stores["acme"].Add(&pipelines.Definition{ID: "p-1", Name: "windows-endpoint", Priority: 20, Source: tenantPipelineSource, Active: true}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if err := m.ReloadTenant("acme"); err != nil {
		t.Fatalf("ReloadTenant() failed: %v", err)
	}

	engine, _ := m.GetEngine("acme")
	rule, err := sigma.ParseRule([]byte(`
title: Reload Test
detection:
    selection:
        CommandLine: 'whoami'
    condition: selection
`))
	if err != nil {
		t.Fatalf("failed to parse rule: %v", err)
	}

	result, err := engine.Transform("p-1", rule)
	if err != nil {
		t.Fatalf("Transform() failed after reload: %v", err)
	}
	if len(result.Fields) != 1 || result.Fields[0] != "Process.CommandLine" {
		t.Errorf("unexpected fields: %v", result.Fields)
	}
}

func TestReloadUnknownTenant(t *testing.T) {
	m, _ := inMemoryManager(t)

	if err := m.ReloadTenant("nobody"); err == nil {
		t.Fatal("expected error reloading unknown tenant")
	}
}

func TestListAndDeleteTenants(t *testing.T) {
	m, _ := inMemoryManager(t)

	if err := m.CreateTenant("acme"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	if err := m.CreateTenant("globex"); err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}

	if got := len(m.ListTenants()); got != 2 {
		t.Errorf("expected 2 tenants, got %d", got)
	}

	if err := m.DeleteTenant("acme"); err != nil {
		t.Fatalf("DeleteTenant() failed: %v", err)
	}
	if got := len(m.ListTenants()); got != 1 {
		t.Errorf("expected 1 tenant after delete, got %d", got)
	}
	if err := m.DeleteTenant("acme"); err == nil {
		t.Fatal("deleting a missing tenant should fail")
	}
}
