package pipelines

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigmaproc/sigmaproc/processing"
	"github.com/sigmaproc/sigmaproc/sigma"
)

// Engine compiles stored pipeline definitions and applies them to rules.
// Compiled pipelines are cached under an RWMutex so concurrent transforms
// never recompile; each Transform call applies through a fresh Pipeline
// over the shared (stateless) item list, so per-rule state is never
// shared between callers.
type Engine struct {
	store    Store
	cache    DefinitionsCache
	compiled map[string]*processing.Pipeline // definition ID -> compiled prototype
	mu       sync.RWMutex
}

// NewEngine creates an engine and compiles all active definitions from
// the store.
func NewEngine(store Store) (*Engine, error) {
	en := &Engine{
		store:    store,
		cache:    NewInMemoryDefinitionsCache(DefaultCacheConfig()),
		compiled: make(map[string]*processing.Pipeline),
	}

	if err := en.CompileAll(); err != nil {
		return nil, fmt.Errorf("failed to compile pipelines: %w", err)
	}

	return en, nil
}

// Compile parses and builds a single definition, replacing any previous
// compilation under the same ID.
func (en *Engine) Compile(id, source string) error {
	cfg, err := processing.ParseConfig([]byte(source))
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	p, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	en.mu.Lock()
	en.compiled[id] = p
	en.mu.Unlock()

	return nil
}

// CompileAll compiles all active definitions from the store and
// populates the definitions cache.
func (en *Engine) CompileAll() error {
	defs, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, def := range defs {
		if err := en.Compile(def.ID, def.Source); err != nil {
			return fmt.Errorf("failed to compile pipeline %s: %w", def.ID, err)
		}
	}

	en.cache.Set(defs)

	return nil
}

// Transform applies the identified pipeline to the rule. The rule is
// modified in place; on error it may be partially transformed and
// should be discarded.
func (en *Engine) Transform(id string, rule *sigma.Rule) (*TransformResult, error) {
	def, err := en.store.Get(id)
	if err != nil {
		return nil, err
	}

	en.mu.RLock()
	proto, exists := en.compiled[id]
	en.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("pipeline %s is not compiled", id)
	}

	p := processing.NewPipeline(proto.Name, proto.Priority, proto.Items)
	if err := p.ApplyRule(rule); err != nil {
		return nil, err
	}

	result := &TransformResult{
		PipelineID:   def.ID,
		PipelineName: def.Name,
		Rule:         rule,
		AppliedItems: p.AppliedItems(),
	}
	if fields, ok := p.State[processing.FieldsStateKey].([]string); ok {
		result.Fields = fields
	}

	return result, nil
}

// TransformAll applies every active pipeline to the rule in ascending
// priority order. The pipelines form a chain over the same rule, so the
// first failure aborts the chain: continuing would transform a rule
// already flagged as unsupported.
func (en *Engine) TransformAll(rule *sigma.Rule) ([]*TransformResult, error) {
	defs := en.cache.Get()

	if defs == nil {
		var err error
		defs, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(defs)
	}

	ordered := make([]*Definition, len(defs))
	copy(ordered, defs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	results := make([]*TransformResult, 0, len(ordered))
	for _, def := range ordered {
		result, err := en.Transform(def.ID, rule)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// Add validates, compiles, and stores a new definition.
func (en *Engine) Add(def *Definition) error {
	// Check existence before compiling to avoid overwriting a live compilation.
	_, err := en.store.Get(def.ID)
	if err == nil {
		return fmt.Errorf("pipeline with ID %s already exists", def.ID)
	}

	if err := en.Compile(def.ID, def.Source); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}

	if err := en.store.Add(def); err != nil {
		// Remove the compilation if the store rejects the definition.
		en.mu.Lock()
		delete(en.compiled, def.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// Update recompiles and stores an existing definition.
func (en *Engine) Update(def *Definition) error {
	if err := en.Compile(def.ID, def.Source); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}

	if err := en.store.Update(def); err != nil {
		return err
	}

	en.cache.Invalidate()

	return nil
}

// Delete removes a definition from the store and the compilation cache.
func (en *Engine) Delete(id string) error {
	if err := en.store.Delete(id); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.compiled, id)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}
