package processing

import (
	"strings"

	"github.com/sigmaproc/sigmaproc/sigma"
)

// FieldPlaceholder is the substring of a DetectionItemFailure message
// template that is replaced with the offending detection item's field name.
const FieldPlaceholder = "{field}"

// DetectionItemFailure aborts processing of any rule it is applied to.
// It is used to flag rule constructs that the target backend is known
// not to support, failing at processing time instead of emitting a
// silently wrong query. The message template may contain the {field}
// placeholder; a template without it is used verbatim.
type DetectionItemFailure struct {
	Message string
}

// ApplyDetectionItem never succeeds: it returns a TransformationError
// carrying the message template with the item's field name substituted.
func (t *DetectionItemFailure) ApplyDetectionItem(item *sigma.DetectionItem) error {
	return NewTransformationError(strings.ReplaceAll(t.Message, FieldPlaceholder, item.Field))
}

func (t *DetectionItemFailure) Apply(p *Pipeline, rule *sigma.Rule) error {
	return applyDetectionItems(t, rule)
}
