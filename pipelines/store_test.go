package pipelines

import (
	"testing"
	"time"
)

func testDefinition(id, name string) *Definition {
	return &Definition{
		ID:       id,
		Name:     name,
		Priority: 10,
		Source:   "name: " + name + "\ntransformations:\n  - id: collect\n    type: referenced_fields\n",
		Active:   true,
	}
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryStore()

	def := testDefinition("p-1", "windows")
	if err := store.Add(def); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := store.Get("p-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "windows" {
		t.Errorf("unexpected name: %q", got.Name)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be set on Add")
	}
}

func TestInMemoryStoreRejectsDuplicateID(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(testDefinition("p-1", "a")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Add(testDefinition("p-1", "b")); err == nil {
		t.Fatal("expected error for duplicate ID")
	}
}

func TestInMemoryStoreGetMissing(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.Get("missing"); err == nil {
		t.Fatal("expected error for missing definition")
	}
}

func TestInMemoryStoreListActive(t *testing.T) {
	store := NewInMemoryStore()

	active := testDefinition("p-1", "active")
	inactive := testDefinition("p-2", "inactive")
	inactive.Active = false

	if err := store.Add(active); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Add(inactive); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	defs, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(defs) != 1 || defs[0].ID != "p-1" {
		t.Errorf("expected only the active definition, got %v", defs)
	}
}

func TestInMemoryStoreUpdatePreservesCreatedAt(t *testing.T) {
	store := NewInMemoryStore()

	def := testDefinition("p-1", "original")
	if err := store.Add(def); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	created := def.CreatedAt

	time.Sleep(time.Millisecond)

	updated := testDefinition("p-1", "renamed")
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, _ := store.Get("p-1")
	if got.Name != "renamed" {
		t.Errorf("update not applied: %q", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("CreatedAt should be preserved across updates")
	}
	if !got.UpdatedAt.After(created) {
		t.Error("UpdatedAt should advance on update")
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(testDefinition("p-1", "a")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Delete("p-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("p-1"); err == nil {
		t.Fatal("definition should be gone after Delete")
	}
	if err := store.Delete("p-1"); err == nil {
		t.Fatal("deleting a missing definition should fail")
	}
}

func TestInMemoryCacheTTL(t *testing.T) {
	cache := NewInMemoryDefinitionsCache(CacheConfig{TTL: 10 * time.Millisecond})

	cache.Set([]*Definition{testDefinition("p-1", "a")})
	if cache.Get() == nil {
		t.Fatal("cache should be valid immediately after Set")
	}

	time.Sleep(20 * time.Millisecond)
	if cache.Get() != nil {
		t.Error("cache should expire after TTL")
	}
}

func TestInMemoryCacheInvalidate(t *testing.T) {
	cache := NewInMemoryDefinitionsCache(DefaultCacheConfig())

	cache.Set([]*Definition{testDefinition("p-1", "a")})
	cache.Invalidate()

	if cache.Get() != nil {
		t.Error("cache should miss after Invalidate")
	}
	if cache.IsValid() {
		t.Error("cache should not be valid after Invalidate")
	}
}
