// Package yamlsink builds a gopkg.in/yaml.v3 node tree from a transcoded
// document. Scalars carry explicit tags so integers, floats and strings that
// look like numbers keep their type when the tree is encoded.
package yamlsink

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/feedex/internal/transcode"
	"github.com/gauthierbraillon/feedex/internal/value"
)

// Sink assembles a *yaml.Node.
type Sink struct {
	stack []*yaml.Node
	root  *yaml.Node
}

var _ transcode.Sink[*yaml.Node] = (*Sink)(nil)

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) add(n *yaml.Node) error {
	if len(s.stack) == 0 {
		if s.root != nil {
			return errors.New("value emitted after root was complete")
		}
		s.root = n
		return nil
	}
	top := s.stack[len(s.stack)-1]
	if top.Kind == yaml.MappingNode && len(top.Content)%2 == 0 {
		return errors.New("map value emitted without a key")
	}
	top.Content = append(top.Content, n)
	return nil
}

func scalar(tag, v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v}
}

func (s *Sink) Null() error { return s.add(scalar("!!null", "null")) }

func (s *Sink) Bool(b bool) error { return s.add(scalar("!!bool", strconv.FormatBool(b))) }

func (s *Sink) Number(n value.Number) error {
	if n.Kind() != value.FloatNumber {
		return s.add(scalar("!!int", n.String()))
	}
	f := n.Float64()
	switch {
	case math.IsNaN(f):
		return s.add(scalar("!!float", ".nan"))
	case math.IsInf(f, 1):
		return s.add(scalar("!!float", ".inf"))
	case math.IsInf(f, -1):
		return s.add(scalar("!!float", "-.inf"))
	}
	str := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(str, ".e") {
		str += ".0"
	}
	return s.add(scalar("!!float", str))
}

func (s *Sink) String(str string) error { return s.add(scalar("!!str", str)) }

func (s *Sink) BeginSequence(n int) error {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: make([]*yaml.Node, 0, n)}
	if err := s.add(node); err != nil {
		return err
	}
	s.stack = append(s.stack, node)
	return nil
}

func (s *Sink) EndSequence() error { return s.pop(yaml.SequenceNode) }

func (s *Sink) BeginMap(n int) error {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: make([]*yaml.Node, 0, 2*n)}
	if err := s.add(node); err != nil {
		return err
	}
	s.stack = append(s.stack, node)
	return nil
}

func (s *Sink) Key(k string) error {
	if len(s.stack) == 0 || s.stack[len(s.stack)-1].Kind != yaml.MappingNode {
		return fmt.Errorf("key %q outside of a map", k)
	}
	top := s.stack[len(s.stack)-1]
	top.Content = append(top.Content, scalar("!!str", k))
	return nil
}

func (s *Sink) EndMap() error { return s.pop(yaml.MappingNode) }

func (s *Sink) pop(kind yaml.Kind) error {
	if len(s.stack) == 0 || s.stack[len(s.stack)-1].Kind != kind {
		return errors.New("collection end does not match its begin")
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// Result returns the root node.
func (s *Sink) Result() (*yaml.Node, error) {
	if s.root == nil || len(s.stack) > 0 {
		return nil, errors.New("document is incomplete")
	}
	return s.root, nil
}

// Encode writes node as a YAML document with the given indent width.
func Encode(w io.Writer, node *yaml.Node, indent int) error {
	enc := yaml.NewEncoder(w)
	if indent > 0 {
		enc.SetIndent(indent)
	}
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}
