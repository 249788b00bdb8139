package processing

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transformation type names accepted in pipeline definitions.
const (
	TypeFieldMapping                = "field_mapping"
	TypeCaseInsensitiveFieldMapping = "field_mapping_case_insensitive"
	TypeDetectionItemFailure        = "detection_item_failure"
	TypeReferencedFields            = "referenced_fields"
)

// MappingConfig is a field mapping table as written in a pipeline
// definition. A value may be a single target field or a list.
type MappingConfig map[string][]string

// UnmarshalYAML accepts both "field: Target" and "field: [A, B]" forms.
func (m *MappingConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("mapping must be a mapping of field names to targets")
	}

	result := make(MappingConfig, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		valueNode := node.Content[i+1]

		switch valueNode.Kind {
		case yaml.ScalarNode:
			result[key] = []string{valueNode.Value}
		case yaml.SequenceNode:
			targets := make([]string, 0, len(valueNode.Content))
			for _, elem := range valueNode.Content {
				if elem.Kind != yaml.ScalarNode {
					return fmt.Errorf("mapping for %q must contain only strings", key)
				}
				targets = append(targets, elem.Value)
			}
			result[key] = targets
		default:
			return fmt.Errorf("mapping for %q must be a string or list of strings", key)
		}
	}

	*m = result
	return nil
}

// ItemConfig is one transformation slot of a pipeline definition.
type ItemConfig struct {
	ID             string        `yaml:"id"`
	Type           string        `yaml:"type"`
	Mapping        MappingConfig `yaml:"mapping,omitempty"`
	Message        string        `yaml:"message,omitempty"`
	RuleConditions []string      `yaml:"rule_conditions,omitempty"`
}

// Config is a pipeline definition as stored and exchanged in YAML.
type Config struct {
	Name            string       `yaml:"name"`
	Priority        int          `yaml:"priority"`
	Transformations []ItemConfig `yaml:"transformations"`
}

// ParseConfig parses and validates a pipeline definition.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline definition: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a pipeline definition for structural defects so that
// misconfiguration fails at load time, not while a rule is in flight.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(c.Transformations) == 0 {
		return fmt.Errorf("pipeline %q must contain at least one transformation", c.Name)
	}
	if len(c.Transformations) > 100 {
		return fmt.Errorf("pipeline %q contains %d transformations, maximum allowed is 100", c.Name, len(c.Transformations))
	}

	seen := make(map[string]bool, len(c.Transformations))
	for idx, item := range c.Transformations {
		if item.ID == "" {
			return fmt.Errorf("pipeline %q: transformation %d has no id", c.Name, idx)
		}
		if err := validateItemID(item.ID); err != nil {
			return fmt.Errorf("pipeline %q: invalid transformation id %q: %w", c.Name, item.ID, err)
		}
		if seen[item.ID] {
			return fmt.Errorf("pipeline %q: duplicate transformation id %q", c.Name, item.ID)
		}
		seen[item.ID] = true

		if err := validateItem(item); err != nil {
			return fmt.Errorf("pipeline %q, transformation %q: %w", c.Name, item.ID, err)
		}
	}

	return nil
}

var validItemID = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// validateItemID checks a transformation id used in logs and error
// messages: start with a letter or underscore, then letters, digits,
// underscores, or hyphens, at most 100 characters.
func validateItemID(id string) error {
	if len(id) > 100 {
		return fmt.Errorf("id length %d exceeds maximum of 100 characters", len(id))
	}
	if !validItemID.MatchString(id) {
		return fmt.Errorf("must start with a letter or underscore, followed by letters, digits, underscores, or hyphens")
	}
	return nil
}

func validateItem(item ItemConfig) error {
	switch item.Type {
	case TypeFieldMapping, TypeCaseInsensitiveFieldMapping:
		if len(item.Mapping) == 0 {
			return fmt.Errorf("mapping is required and cannot be empty")
		}
		if len(item.Mapping) > 500 {
			return fmt.Errorf("mapping contains %d entries, maximum allowed is 500", len(item.Mapping))
		}
		for key, targets := range item.Mapping {
			if key == "" {
				return fmt.Errorf("mapping contains an empty field name")
			}
			if len(targets) == 0 {
				return fmt.Errorf("mapping for %q has no target fields", key)
			}
			// Case-insensitive lookups lowercase the query, so keys that
			// are not lowercase can never match.
			if item.Type == TypeCaseInsensitiveFieldMapping && key != strings.ToLower(key) {
				return fmt.Errorf("mapping key %q must be lowercase for case-insensitive matching", key)
			}
		}

	case TypeDetectionItemFailure:
		if item.Message == "" {
			return fmt.Errorf("message is required")
		}

	case TypeReferencedFields:
		// No configuration.

	case "":
		return fmt.Errorf("transformation type is required")

	default:
		return fmt.Errorf("unknown transformation type %q", item.Type)
	}

	return nil
}

// Build compiles a validated definition into an executable pipeline.
// Rule conditions are compiled here so that expression errors surface
// as configuration errors.
func (c *Config) Build() (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	items := make([]*Item, 0, len(c.Transformations))
	for _, itemCfg := range c.Transformations {
		transformation, err := buildTransformation(itemCfg)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q, transformation %q: %w", c.Name, itemCfg.ID, err)
		}

		conditions := make([]*RuleCondition, 0, len(itemCfg.RuleConditions))
		for _, expr := range itemCfg.RuleConditions {
			cond, err := NewRuleCondition(expr)
			if err != nil {
				return nil, fmt.Errorf("pipeline %q, transformation %q: %w", c.Name, itemCfg.ID, err)
			}
			conditions = append(conditions, cond)
		}

		items = append(items, &Item{
			ID:             itemCfg.ID,
			Transformation: transformation,
			RuleConditions: conditions,
		})
	}

	return NewPipeline(c.Name, c.Priority, items), nil
}

func buildTransformation(item ItemConfig) (Transformation, error) {
	switch item.Type {
	case TypeFieldMapping:
		return &FieldMapping{Mappings: item.Mapping}, nil
	case TypeCaseInsensitiveFieldMapping:
		return &CaseInsensitiveFieldMapping{FieldMapping{Mappings: item.Mapping}}, nil
	case TypeDetectionItemFailure:
		return &DetectionItemFailure{Message: item.Message}, nil
	case TypeReferencedFields:
		return &ReferencedFieldsCollector{}, nil
	default:
		return nil, fmt.Errorf("unknown transformation type %q", item.Type)
	}
}
