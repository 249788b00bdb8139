package pipelines

import (
	"time"

	"github.com/sigmaproc/sigmaproc/sigma"
)

// Definition is a stored processing pipeline definition. Source holds
// the YAML document parsed by the processing package.
type Definition struct {
	ID        string
	Name      string
	Priority  int
	Source    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransformResult contains the outcome of applying one pipeline to a rule.
type TransformResult struct {
	PipelineID   string
	PipelineName string
	Rule         *sigma.Rule
	Fields       []string
	AppliedItems []string
}
