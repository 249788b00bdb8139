package processing

import (
	"fmt"

	"github.com/sigmaproc/sigmaproc/sigma"
)

// FieldsStateKey is the pipeline state slot the ReferencedFieldsCollector
// publishes to. Downstream stages and backend emitters read it to learn
// which physical fields the rule references.
const FieldsStateKey = "Fields"

// ReferencedFieldsCollector projects the pipeline's field mapping table
// into a flat, ordered list of target field names and stores it under
// the "Fields" state slot. By this stage every logical field must have
// resolved to exactly one physical field: every tracker entry must be a
// FieldSet with exactly one element, and any other shape is reported as
// an error naming the offending key. The list is published only after
// the whole table has validated, so a failure never leaves a partial
// list visible to downstream consumers.
type ReferencedFieldsCollector struct{}

func (t *ReferencedFieldsCollector) Apply(p *Pipeline, rule *sigma.Rule) error {
	keys := p.FieldMappings.Keys()
	fields := make([]string, 0, len(keys))

	for _, key := range keys {
		value, _ := p.FieldMappings.Get(key)

		set, ok := value.(FieldSet)
		if !ok {
			return fmt.Errorf("expected a field set for key %q, got %T instead", key, value)
		}

		if set.Len() != 1 {
			return fmt.Errorf("expected a field set with exactly one element for key %q, got %d elements instead", key, set.Len())
		}

		fields = append(fields, set.Values()[0])
	}

	p.State[FieldsStateKey] = fields
	return nil
}
