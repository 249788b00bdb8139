package processing

import (
	"strings"
	"testing"
)

const testPipelineYAML = `
name: windows-endpoint
priority: 20
transformations:
  - id: unsupported-integrity
    type: detection_item_failure
    message: "Field {field} is not supported"
    rule_conditions:
      - rule.logsource.category == 'registry_event'
  - id: process-fields
    type: field_mapping_case_insensitive
    mapping:
      commandline: Process.CommandLine
      image: Process.Path
      hashes:
        - Process.Hash.MD5
        - Process.Hash.SHA1
    rule_conditions:
      - rule.logsource.category == 'process_creation'
  - id: referenced-fields
    type: referenced_fields
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testPipelineYAML))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}

	if cfg.Name != "windows-endpoint" {
		t.Errorf("unexpected name: %q", cfg.Name)
	}
	if cfg.Priority != 20 {
		t.Errorf("unexpected priority: %d", cfg.Priority)
	}
	if len(cfg.Transformations) != 3 {
		t.Fatalf("expected 3 transformations, got %d", len(cfg.Transformations))
	}

	mapping := cfg.Transformations[1].Mapping
	if got := mapping["commandline"]; len(got) != 1 || got[0] != "Process.CommandLine" {
		t.Errorf("scalar mapping value not parsed: %v", got)
	}
	if got := mapping["hashes"]; len(got) != 2 {
		t.Errorf("list mapping value not parsed: %v", got)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "transformations:\n  - id: x\n    type: referenced_fields\n",
			want: "name is required",
		},
		{
			name: "no transformations",
			yaml: "name: empty\n",
			want: "at least one transformation",
		},
		{
			name: "duplicate ids",
			yaml: "name: dup\ntransformations:\n  - id: x\n    type: referenced_fields\n  - id: x\n    type: referenced_fields\n",
			want: "duplicate transformation id",
		},
		{
			name: "unknown type",
			yaml: "name: bad\ntransformations:\n  - id: x\n    type: frobnicate\n",
			want: "unknown transformation type",
		},
		{
			name: "missing type",
			yaml: "name: bad\ntransformations:\n  - id: x\n",
			want: "type is required",
		},
		{
			name: "mapper without mapping",
			yaml: "name: bad\ntransformations:\n  - id: x\n    type: field_mapping\n",
			want: "mapping is required",
		},
		{
			name: "failure without message",
			yaml: "name: bad\ntransformations:\n  - id: x\n    type: detection_item_failure\n",
			want: "message is required",
		},
		{
			name: "malformed id",
			yaml: "name: bad\ntransformations:\n  - id: 'not a good id'\n    type: referenced_fields\n",
			want: "invalid transformation id",
		},
		{
			name: "mixed-case key on case-insensitive mapper",
			yaml: "name: bad\ntransformations:\n  - id: x\n    type: field_mapping_case_insensitive\n    mapping:\n      CommandLine: Process.CommandLine\n",
			want: "must be lowercase",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestConfigBuild(t *testing.T) {
	cfg, err := ParseConfig([]byte(testPipelineYAML))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}

	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if len(p.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(p.Items))
	}
	if _, ok := p.Items[0].Transformation.(*DetectionItemFailure); !ok {
		t.Errorf("item 0 should be a DetectionItemFailure, got %T", p.Items[0].Transformation)
	}
	if _, ok := p.Items[1].Transformation.(*CaseInsensitiveFieldMapping); !ok {
		t.Errorf("item 1 should be a CaseInsensitiveFieldMapping, got %T", p.Items[1].Transformation)
	}
	if len(p.Items[1].RuleConditions) != 1 {
		t.Errorf("item 1 should carry its rule condition")
	}
}

func TestConfigBuildAndApply(t *testing.T) {
	cfg, err := ParseConfig([]byte(testPipelineYAML))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}
	p, err := cfg.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	rule := testRule(t, mappingTestRule)
	if err := p.ApplyRule(rule); err != nil {
		t.Fatalf("ApplyRule() failed: %v", err)
	}

	// The failure item is gated on registry_event and must not fire; the
	// mapper and collector apply.
	fields, ok := p.State[FieldsStateKey].([]string)
	if !ok {
		t.Fatal("Fields slot missing")
	}
	if len(fields) != 2 || fields[0] != "Process.CommandLine" {
		t.Errorf("unexpected collected fields: %v", fields)
	}
}

func TestConfigBuildRejectsBadCondition(t *testing.T) {
	yaml := "name: bad\ntransformations:\n  - id: x\n    type: referenced_fields\n    rule_conditions:\n      - 'rule.level =='\n"
	cfg, err := ParseConfig([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseConfig() should pass structural validation: %v", err)
	}
	if _, err := cfg.Build(); err == nil {
		t.Fatal("Build() should reject a malformed condition expression")
	}
}
