package processing

import (
	"strings"

	"github.com/sigmaproc/sigmaproc/sigma"
)

// Transformation is a pluggable unit of rule-rewriting or validation
// logic applied during pipeline processing.
type Transformation interface {
	Apply(p *Pipeline, rule *sigma.Rule) error
}

// FieldMapper resolves a logical field name to its physical target
// field(s). A nil result means no mapping exists; a single-element
// result is a one-to-one mapping; multiple elements fan the field out
// to several targets.
type FieldMapper interface {
	GetMapping(field string) []string
}

// DetectionItemVisitor is applied to every detection item of a rule.
type DetectionItemVisitor interface {
	ApplyDetectionItem(item *sigma.DetectionItem) error
}

// FieldMapping maps detection item fields to target fields using exact
// key comparison against the configured mapping table.
type FieldMapping struct {
	Mappings map[string][]string
}

// GetMapping returns the target field(s) for field, or nil when no
// mapping is configured.
func (t *FieldMapping) GetMapping(field string) []string {
	return t.Mappings[field]
}

func (t *FieldMapping) Apply(p *Pipeline, rule *sigma.Rule) error {
	return applyFieldMapping(t, p, rule)
}

// CaseInsensitiveFieldMapping maps fields like FieldMapping but matches
// field names case-insensitively: the queried name is lowercased before
// the lookup. Mapping keys must themselves be configured in lowercase;
// mixed-case keys are never matched.
type CaseInsensitiveFieldMapping struct {
	FieldMapping
}

// GetMapping returns the target field(s) for the lowercased field name.
func (t *CaseInsensitiveFieldMapping) GetMapping(field string) []string {
	return t.FieldMapping.GetMapping(strings.ToLower(field))
}

func (t *CaseInsensitiveFieldMapping) Apply(p *Pipeline, rule *sigma.Rule) error {
	return applyFieldMapping(t, p, rule)
}

// applyFieldMapping rewrites the rule's detection item fields and fields
// list through the given mapper, recording every applied mapping in the
// pipeline's field mapping tracker. Items mapped to multiple targets are
// expanded into one item per target.
func applyFieldMapping(m FieldMapper, p *Pipeline, rule *sigma.Rule) error {
	for _, search := range rule.Detection.Searches {
		var items []*sigma.DetectionItem
		for _, item := range search.Items {
			targets := m.GetMapping(item.Field)
			if len(targets) == 0 {
				items = append(items, item)
				continue
			}
			p.FieldMappings.Add(item.Field, targets...)
			for _, target := range targets {
				items = append(items, &sigma.DetectionItem{
					Field:     target,
					Modifiers: item.Modifiers,
					Values:    item.Values,
				})
			}
		}
		search.Items = items
	}

	if len(rule.Fields) > 0 {
		var fields []string
		for _, field := range rule.Fields {
			targets := m.GetMapping(field)
			if len(targets) == 0 {
				fields = append(fields, field)
				continue
			}
			p.FieldMappings.Add(field, targets...)
			fields = append(fields, targets...)
		}
		rule.Fields = fields
	}

	return nil
}

// applyDetectionItems applies a visitor to every detection item of the
// rule, halting at the first error.
func applyDetectionItems(v DetectionItemVisitor, rule *sigma.Rule) error {
	return rule.EachDetectionItem(v.ApplyDetectionItem)
}
