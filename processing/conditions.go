package processing

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/sigmaproc/sigmaproc/sigma"
)

var (
	ruleEnvOnce sync.Once
	ruleEnv     *cel.Env
	ruleEnvErr  error
)

// ruleConditionEnv returns the shared CEL environment for rule
// conditions. Conditions see the rule's metadata under the "rule"
// variable, e.g. rule.logsource.category == 'process_creation'.
func ruleConditionEnv() (*cel.Env, error) {
	ruleEnvOnce.Do(func() {
		ruleEnv, ruleEnvErr = cel.NewEnv(
			cel.Variable("rule", cel.DynType),
		)
		if ruleEnvErr != nil {
			ruleEnvErr = fmt.Errorf("failed to create CEL environment: %w", ruleEnvErr)
		}
	})
	return ruleEnv, ruleEnvErr
}

// RuleCondition gates a pipeline item on a CEL expression over the
// rule's metadata. The expression is compiled once at construction.
type RuleCondition struct {
	Expression string
	prog       cel.Program
}

// NewRuleCondition compiles the expression. Compilation failures are
// configuration errors and surface before any rule is processed.
func NewRuleCondition(expression string) (*RuleCondition, error) {
	env, err := ruleConditionEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid rule condition %q: %w", expression, issues.Err())
	}

	// Cost limit prevents resource exhaustion from pathological expressions.
	prog, err := env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error for %q: %w", expression, err)
	}

	return &RuleCondition{Expression: expression, prog: prog}, nil
}

// Matches evaluates the condition against the rule. Non-boolean results
// are treated as no match.
func (c *RuleCondition) Matches(rule *sigma.Rule) (bool, error) {
	out, _, err := c.prog.Eval(map[string]any{"rule": ruleFacts(rule)})
	if err != nil {
		return false, fmt.Errorf("rule condition %q: %w", c.Expression, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, nil
	}
	return matched, nil
}

// ruleFacts projects the rule's metadata into the map shape rule
// conditions evaluate against.
func ruleFacts(rule *sigma.Rule) map[string]any {
	tags := make([]any, len(rule.Tags))
	for i, tag := range rule.Tags {
		tags[i] = tag
	}

	return map[string]any{
		"title":  rule.Title,
		"id":     rule.ID,
		"status": rule.Status,
		"level":  rule.Level,
		"tags":   tags,
		"logsource": map[string]any{
			"product":  rule.Logsource.Product,
			"category": rule.Logsource.Category,
			"service":  rule.Logsource.Service,
		},
	}
}
