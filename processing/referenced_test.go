package processing

import (
	"strings"
	"testing"
)

func collectorPipeline() *Pipeline {
	p := NewPipeline("test", 10, nil)
	p.FieldMappings.Add("commandline", "Process.CommandLine")
	p.FieldMappings.Add("image", "Process.Path")
	p.FieldMappings.Add("user", "Process.User")
	return p
}

func TestReferencedFieldsCollectorPublishesOrderedList(t *testing.T) {
	p := collectorPipeline()
	rule := testRule(t, mappingTestRule)

	collector := &ReferencedFieldsCollector{}
	if err := collector.Apply(p, rule); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	value, ok := p.State[FieldsStateKey]
	if !ok {
		t.Fatal("Fields state slot was not written")
	}
	fields, ok := value.([]string)
	if !ok {
		t.Fatalf("expected []string in state, got %T", value)
	}

	want := []string{"Process.CommandLine", "Process.Path", "Process.User"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d: %v", len(want), len(fields), fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], fields[i])
		}
	}
}

func TestReferencedFieldsCollectorEmptyTracker(t *testing.T) {
	p := NewPipeline("test", 10, nil)
	rule := testRule(t, mappingTestRule)

	collector := &ReferencedFieldsCollector{}
	if err := collector.Apply(p, rule); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	fields, ok := p.State[FieldsStateKey].([]string)
	if !ok {
		t.Fatal("Fields slot should hold an empty list, not be absent")
	}
	if len(fields) != 0 {
		t.Errorf("expected empty list, got %v", fields)
	}
}

func TestReferencedFieldsCollectorTypeMismatch(t *testing.T) {
	p := collectorPipeline()
	p.FieldMappings.Set("image", "Process.Path")
	rule := testRule(t, mappingTestRule)

	collector := &ReferencedFieldsCollector{}
	err := collector.Apply(p, rule)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if !strings.Contains(err.Error(), `"image"`) {
		t.Errorf("error should name the offending key, got: %v", err)
	}
	if !strings.Contains(err.Error(), "string") {
		t.Errorf("error should name the observed kind, got: %v", err)
	}

	if _, published := p.State[FieldsStateKey]; published {
		t.Error("no Fields slot may be published on failure")
	}
}

func TestReferencedFieldsCollectorCardinality(t *testing.T) {
	cases := []struct {
		name  string
		set   FieldSet
		count string
	}{
		{"empty set", NewFieldSet(), "0"},
		{"two elements", NewFieldSet("Process.Path", "Parent.Path"), "2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := collectorPipeline()
			p.FieldMappings.Set("image", tc.set)
			rule := testRule(t, mappingTestRule)

			collector := &ReferencedFieldsCollector{}
			err := collector.Apply(p, rule)
			if err == nil {
				t.Fatal("expected cardinality error")
			}
			if !strings.Contains(err.Error(), `"image"`) {
				t.Errorf("error should name the offending key, got: %v", err)
			}
			if !strings.Contains(err.Error(), tc.count) {
				t.Errorf("error should name the observed count, got: %v", err)
			}
			if _, published := p.State[FieldsStateKey]; published {
				t.Error("no Fields slot may be published on failure")
			}
		})
	}
}

func TestReferencedFieldsCollectorIsIdempotent(t *testing.T) {
	p := collectorPipeline()
	rule := testRule(t, mappingTestRule)
	collector := &ReferencedFieldsCollector{}

	if err := collector.Apply(p, rule); err != nil {
		t.Fatalf("first Apply() failed: %v", err)
	}
	first := p.State[FieldsStateKey].([]string)

	if err := collector.Apply(p, rule); err != nil {
		t.Fatalf("second Apply() failed: %v", err)
	}
	second := p.State[FieldsStateKey].([]string)

	if len(first) != len(second) {
		t.Fatalf("repeated application changed the list length: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("repeated application changed element %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestReferencedFieldsCollectorOverwritesPriorValue(t *testing.T) {
	p := collectorPipeline()
	p.State[FieldsStateKey] = []string{"stale"}
	rule := testRule(t, mappingTestRule)

	collector := &ReferencedFieldsCollector{}
	if err := collector.Apply(p, rule); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	fields := p.State[FieldsStateKey].([]string)
	if len(fields) != 3 || fields[0] == "stale" {
		t.Errorf("prior Fields value should be replaced, got %v", fields)
	}
}
