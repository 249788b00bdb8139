package sigma

// Rule is a detection rule conforming to the Sigma rule specification.
// Only the fields relevant to pipeline processing are modeled; unknown
// document keys are ignored at parse time.
type Rule struct {
	Title          string    `yaml:"title"`
	ID             string    `yaml:"id"`
	Status         string    `yaml:"status"`
	Level          string    `yaml:"level"`
	Description    string    `yaml:"description"`
	Author         string    `yaml:"author"`
	References     []string  `yaml:"references"`
	Tags           []string  `yaml:"tags"`
	Logsource      Logsource `yaml:"logsource"`
	Detection      Detection `yaml:"detection"`
	Fields         []string  `yaml:"fields"`
	FalsePositives []string  `yaml:"falsepositives"`
}

// Logsource defines the event stream a rule applies to and is used for
// pre-filtering and pipeline condition matching.
type Logsource struct {
	Product    string `yaml:"product"`
	Category   string `yaml:"category"`
	Service    string `yaml:"service"`
	Definition string `yaml:"definition"`
}

// Detection holds the named searches and the condition expression that
// combines them. Searches preserve document order so that transformations
// observe detection items in a stable, reproducible order.
type Detection struct {
	Condition string
	Searches  []*Search
}

// Search is one named entry of the detection block: either a map of
// field matchers, a list of such maps, or a list of keywords.
type Search struct {
	Name     string
	Items    []*DetectionItem
	Keywords []string
}

// DetectionItem is a single field/value match condition. The field name
// is stored without modifiers; modifiers such as "endswith" or "contains"
// are split off at parse time.
type DetectionItem struct {
	Field     string
	Modifiers []string
	Values    []string
}

// EachDetectionItem walks all detection items of the rule in document
// order, stopping at the first error returned by fn.
func (r *Rule) EachDetectionItem(fn func(*DetectionItem) error) error {
	for _, search := range r.Detection.Searches {
		for _, item := range search.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Search returns the named detection search, or nil if it does not exist.
func (d *Detection) Search(name string) *Search {
	for _, s := range d.Searches {
		if s.Name == name {
			return s
		}
	}
	return nil
}
