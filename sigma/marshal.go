package sigma

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ToYAML serializes the rule back to a Sigma YAML document.
func (r *Rule) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// MarshalYAML encodes the detection block with searches in their stored
// order and the condition last.
func (d Detection) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}

	for _, search := range d.Searches {
		value, err := marshalSearch(search)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, scalarNode(search.Name), value)
	}

	node.Content = append(node.Content, scalarNode("condition"), scalarNode(d.Condition))

	return node, nil
}

func marshalSearch(search *Search) (*yaml.Node, error) {
	if len(search.Keywords) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, kw := range search.Keywords {
			seq.Content = append(seq.Content, scalarNode(kw))
		}
		return seq, nil
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, item := range search.Items {
		key := item.Field
		if len(item.Modifiers) > 0 {
			key += "|" + strings.Join(item.Modifiers, "|")
		}

		var value *yaml.Node
		if len(item.Values) == 1 {
			value = scalarNode(item.Values[0])
		} else {
			value = &yaml.Node{Kind: yaml.SequenceNode}
			for _, v := range item.Values {
				value.Content = append(value.Content, scalarNode(v))
			}
		}

		node.Content = append(node.Content, scalarNode(key), value)
	}

	return node, nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}
