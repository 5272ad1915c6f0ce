package config

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Node is one element of a parsed configuration document: a Mapping, a
// Sequence, or one of the scalar kinds String, Bool and Other.
type Node interface {
	documentNode()
}

// Entry is a single key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Node
}

// Mapping keeps its entries in declaration order. Keys are unique.
type Mapping []Entry

// Sequence is an ordered list of nodes.
type Sequence []Node

// String is a string scalar, stored verbatim.
type String string

// Bool is a boolean scalar.
type Bool bool

// Other is any scalar that is neither a string nor a boolean: null, numbers,
// binary data and custom tags. Tag is the resolved YAML tag, Text the source
// text of the scalar.
type Other struct {
	Tag  string
	Text string
}

func (Mapping) documentNode()  {}
func (Sequence) documentNode() {}
func (String) documentNode()   {}
func (Bool) documentNode()     {}
func (Other) documentNode()    {}

const (
	tagStr       = "!!str"
	tagBool      = "!!bool"
	tagInt       = "!!int"
	tagFloat     = "!!float"
	tagMerge     = "!!merge"
	tagTimestamp = "!!timestamp"
)

// decodeDocument reads the first YAML document from r and returns its root,
// which must be a mapping.
func decodeDocument(r io.Reader) (Mapping, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyDocument
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	conv := &converter{
		expanding: make(map[*yaml.Node]bool),
		budget:    max(minNodeBudget, aliasExpansionRatio*countNodes(&doc)),
	}
	root, err := conv.convert(&doc)
	if err != nil {
		return nil, err
	}
	mapping, ok := root.(Mapping)
	if !ok {
		return nil, errRootNotMapping
	}
	return mapping, nil
}

// Alias expansion may produce at most aliasExpansionRatio nodes per node
// written in the source, and never less than minNodeBudget in total.
const (
	aliasExpansionRatio = 100
	minNodeBudget       = 10000
)

// countNodes counts the nodes written in the source without following aliases.
func countNodes(n *yaml.Node) int {
	total := 1
	for _, child := range n.Content {
		total += countNodes(child)
	}
	return total
}

// converter turns a yaml.Node tree into document nodes. expanding holds the
// anchors currently being expanded so that self-referencing aliases are
// reported instead of recursing forever. produced is checked against budget
// so that nested aliases cannot blow the document up exponentially.
type converter struct {
	expanding map[*yaml.Node]bool
	produced  int
	budget    int
}

func (c *converter) convert(n *yaml.Node) (Node, error) {
	c.produced++
	if c.produced > c.budget {
		return nil, fmt.Errorf("%w: more than %d nodes", errAliasBudget, c.budget)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, errEmptyDocument
		}
		return c.convert(n.Content[0])
	case yaml.AliasNode:
		if c.expanding[n.Alias] {
			return nil, fmt.Errorf("%w: alias *%s at line %d refers to itself", errUnsupportedNode, n.Value, n.Line)
		}
		c.expanding[n.Alias] = true
		defer delete(c.expanding, n.Alias)
		return c.convert(n.Alias)
	case yaml.MappingNode:
		return c.convertMapping(n)
	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(n.Content))
		for _, item := range n.Content {
			child, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			seq = append(seq, child)
		}
		return seq, nil
	case yaml.ScalarNode:
		return convertScalar(n)
	}
	return nil, fmt.Errorf("%w: kind %d at line %d", errUnsupportedNode, n.Kind, n.Line)
}

func (c *converter) convertMapping(n *yaml.Node) (Node, error) {
	mapping := make(Mapping, 0, len(n.Content)/2)
	seen := make(map[string]struct{}, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind == yaml.AliasNode {
			keyNode = keyNode.Alias
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w (line %d)", errUnsupportedKey, keyNode.Line)
		}
		if keyNode.ShortTag() == tagMerge {
			return nil, fmt.Errorf("%w (line %d)", errMergeKey, keyNode.Line)
		}

		key := keyNode.Value
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w %q (line %d)", errDuplicateKey, key, keyNode.Line)
		}
		seen[key] = struct{}{}

		value, err := c.convert(valueNode)
		if err != nil {
			return nil, err
		}
		mapping = append(mapping, Entry{Key: key, Value: value})
	}
	return mapping, nil
}

func convertScalar(n *yaml.Node) (Node, error) {
	switch tag := n.ShortTag(); tag {
	case tagStr, tagTimestamp:
		return String(n.Value), nil
	case tagBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("decode bool at line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	default:
		return Other{Tag: tag, Text: n.Value}, nil
	}
}
