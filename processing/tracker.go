package processing

// FieldSet is an unordered collection of unique target field names.
type FieldSet map[string]struct{}

// NewFieldSet creates a FieldSet from the given values.
func NewFieldSet(values ...string) FieldSet {
	s := make(FieldSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts a value into the set.
func (s FieldSet) Add(value string) {
	s[value] = struct{}{}
}

// Contains reports whether the set holds the given value.
func (s FieldSet) Contains(value string) bool {
	_, ok := s[value]
	return ok
}

// Len returns the number of elements in the set.
func (s FieldSet) Len() int {
	return len(s)
}

// Values returns the elements of the set. Order is unspecified.
func (s FieldSet) Values() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	return values
}

// FieldMappingTracker records which source fields were mapped to which
// target fields during pipeline application, preserving the order in
// which source fields were first seen. Values are held as any so that
// consumers validating the table's shape can observe and report
// violations instead of silently coercing them.
type FieldMappingTracker struct {
	keys    []string
	entries map[string]any
}

// NewFieldMappingTracker creates an empty tracker.
func NewFieldMappingTracker() *FieldMappingTracker {
	return &FieldMappingTracker{
		entries: make(map[string]any),
	}
}

// Add records a mapping from source to the given target fields, merging
// into the existing set when the source was seen before.
func (t *FieldMappingTracker) Add(source string, targets ...string) {
	existing, seen := t.entries[source]
	if seen {
		if set, ok := existing.(FieldSet); ok {
			for _, target := range targets {
				set.Add(target)
			}
			return
		}
	}
	if !seen {
		t.keys = append(t.keys, source)
	}
	t.entries[source] = NewFieldSet(targets...)
}

// Set writes a raw value for source, replacing any previous entry.
func (t *FieldMappingTracker) Set(source string, value any) {
	if _, seen := t.entries[source]; !seen {
		t.keys = append(t.keys, source)
	}
	t.entries[source] = value
}

// Get returns the entry for source and whether it exists.
func (t *FieldMappingTracker) Get(source string) (any, bool) {
	value, ok := t.entries[source]
	return value, ok
}

// Keys returns the source fields in first-seen order.
func (t *FieldMappingTracker) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

// Len returns the number of tracked source fields.
func (t *FieldMappingTracker) Len() int {
	return len(t.keys)
}
