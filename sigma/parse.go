package sigma

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseRule parses a single Sigma rule document from YAML.
// The detection block and its condition are mandatory.
func ParseRule(data []byte) (*Rule, error) {
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}

	if len(rule.Detection.Searches) == 0 {
		return nil, fmt.Errorf("rule %q is missing a detection block", rule.Title)
	}
	if rule.Detection.Condition == "" {
		return nil, fmt.Errorf("rule %q is missing detection.condition", rule.Title)
	}

	return &rule, nil
}

// UnmarshalYAML decodes the detection block while preserving the document
// order of its searches.
func (d *Detection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("detection must be a mapping, got %s", nodeKind(node))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Value == "condition" {
			if err := valueNode.Decode(&d.Condition); err != nil {
				return fmt.Errorf("invalid detection condition: %w", err)
			}
			continue
		}

		search, err := parseSearch(keyNode.Value, valueNode)
		if err != nil {
			return err
		}
		d.Searches = append(d.Searches, search)
	}

	return nil
}

// parseSearch decodes one named search. A search is either a mapping of
// field matchers, a sequence of such mappings, or a sequence of keywords.
func parseSearch(name string, node *yaml.Node) (*Search, error) {
	search := &Search{Name: name}

	switch node.Kind {
	case yaml.MappingNode:
		items, err := parseItemMap(name, node)
		if err != nil {
			return nil, err
		}
		search.Items = items

	case yaml.SequenceNode:
		for _, elem := range node.Content {
			switch elem.Kind {
			case yaml.MappingNode:
				items, err := parseItemMap(name, elem)
				if err != nil {
					return nil, err
				}
				search.Items = append(search.Items, items...)
			case yaml.ScalarNode:
				search.Keywords = append(search.Keywords, elem.Value)
			default:
				return nil, fmt.Errorf("search %q: unsupported list element of kind %s", name, nodeKind(elem))
			}
		}

	default:
		return nil, fmt.Errorf("search %q must be a mapping or list, got %s", name, nodeKind(node))
	}

	return search, nil
}

// parseItemMap decodes a mapping of "field|modifier: value(s)" pairs into
// detection items, in document order.
func parseItemMap(searchName string, node *yaml.Node) ([]*DetectionItem, error) {
	var items []*DetectionItem

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		field, modifiers := splitFieldModifiers(keyNode.Value)

		values, err := parseValues(valueNode)
		if err != nil {
			return nil, fmt.Errorf("search %q, field %q: %w", searchName, field, err)
		}

		items = append(items, &DetectionItem{
			Field:     field,
			Modifiers: modifiers,
			Values:    values,
		})
	}

	return items, nil
}

// parseValues flattens a scalar or a sequence of scalars into strings.
func parseValues(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, elem := range node.Content {
			if elem.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("unsupported value of kind %s", nodeKind(elem))
			}
			values = append(values, elem.Value)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported value of kind %s", nodeKind(node))
	}
}

// splitFieldModifiers splits "Image|endswith" into the plain field name
// and its modifier chain.
func splitFieldModifiers(key string) (string, []string) {
	parts := strings.Split(key, "|")
	if len(parts) == 1 {
		return key, nil
	}
	return parts[0], parts[1:]
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
