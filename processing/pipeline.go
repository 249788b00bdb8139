package processing

import (
	"fmt"

	"github.com/sigmaproc/sigmaproc/sigma"
)

// Item is one transformation slot of a pipeline: a transformation plus
// the conditions gating whether it applies to a given rule.
type Item struct {
	ID             string
	Transformation Transformation
	RuleConditions []*RuleCondition
}

// MatchesRule reports whether every rule condition of the item holds.
// An item without conditions applies to every rule.
func (i *Item) MatchesRule(rule *sigma.Rule) (bool, error) {
	for _, cond := range i.RuleConditions {
		ok, err := cond.Matches(rule)
		if err != nil {
			return false, fmt.Errorf("item %q: %w", i.ID, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Pipeline applies an ordered sequence of transformation items to a
// rule. Field mappings and generic state accumulated during application
// are exposed to the items themselves and to callers inspecting the
// outcome. A Pipeline is not safe for concurrent application; callers
// apply rules sequentially or use one Pipeline per goroutine.
type Pipeline struct {
	Name     string
	Priority int
	Items    []*Item

	// FieldMappings tracks source field to target field set mappings
	// recorded by field mapping transformations, in first-seen order.
	FieldMappings *FieldMappingTracker

	// State is the shared named-slot store threaded through a rule's
	// transformation sequence. Transformations own the slots they write;
	// the ReferencedFieldsCollector writes "Fields".
	State map[string]any

	applied []string
}

// NewPipeline creates a pipeline with the given items.
func NewPipeline(name string, priority int, items []*Item) *Pipeline {
	return &Pipeline{
		Name:          name,
		Priority:      priority,
		Items:         items,
		FieldMappings: NewFieldMappingTracker(),
		State:         make(map[string]any),
	}
}

// ApplyRule applies all matching items to the rule in order. Tracking
// state is reset at the start so consecutive applications observe only
// the current rule's mappings. The rule is modified in place; on error
// it may be partially transformed and should be discarded.
func (p *Pipeline) ApplyRule(rule *sigma.Rule) error {
	p.FieldMappings = NewFieldMappingTracker()
	p.State = make(map[string]any)
	p.applied = p.applied[:0]

	for _, item := range p.Items {
		matches, err := item.MatchesRule(rule)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
		if !matches {
			continue
		}

		if err := item.Transformation.Apply(p, rule); err != nil {
			return fmt.Errorf("pipeline %q, item %q: %w", p.Name, item.ID, err)
		}
		p.applied = append(p.applied, item.ID)
	}

	return nil
}

// AppliedItems returns the IDs of the items applied during the last
// ApplyRule call, in application order.
func (p *Pipeline) AppliedItems() []string {
	applied := make([]string, len(p.applied))
	copy(applied, p.applied)
	return applied
}
