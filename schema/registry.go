// Package schema records the recursive shape of canon types for external
// tooling. A Builder visits a root type and registers one Node per distinct
// declaration it reaches; a declaration already present in the Registry is not
// visited again, which makes self-referential types terminate.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/hash"
	"github.com/arloliu/canon/wire"
)

// Kind is the shape of a Node.
type Kind uint8

const (
	KindPrimitive Kind = 0x1 // KindPrimitive is a scalar or string.
	KindSequence  Kind = 0x2 // KindSequence is a length-prefixed run of Elem.
	KindFixed     Kind = 0x3 // KindFixed is exactly Len values of Elem.
	KindStruct    Kind = 0x4 // KindStruct is an ordered list of fields.
	KindEnum      Kind = 0x5 // KindEnum is a tag byte followed by a variant's fields.
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindSequence:
		return "sequence"
	case KindFixed:
		return "fixed"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// MarshalText renders k for the JSON and YAML exports.
func (k Kind) MarshalText() ([]byte, error) {
	if k.String() == "unknown" {
		return nil, fmt.Errorf("%w: schema kind %d", errs.ErrInvalidDefinition, uint8(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText parses the MarshalText form.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindPrimitive; c <= KindEnum; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}

	return fmt.Errorf("%w: schema kind %q", errs.ErrInvalidDefinition, text)
}

// Field is a named reference to another declaration.
type Field struct {
	Name string `json:"name" yaml:"name" cbor:"1,keyasint"`
	Ref  string `json:"ref" yaml:"ref" cbor:"2,keyasint"`
}

// Variant is one alternative of an enum.
type Variant struct {
	Name   string  `json:"name" yaml:"name" cbor:"1,keyasint"`
	Tag    uint8   `json:"tag" yaml:"tag" cbor:"2,keyasint"`
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty" cbor:"3,keyasint,omitempty"`
}

// Node describes one declaration.
type Node struct {
	Kind Kind `json:"kind" yaml:"kind" cbor:"1,keyasint"`
	// Size is the wire width of a primitive, 0 when variable.
	Size int `json:"size,omitempty" yaml:"size,omitempty" cbor:"2,keyasint,omitempty"`
	// Elem is the element declaration of sequences and fixed arrays.
	Elem string `json:"elem,omitempty" yaml:"elem,omitempty" cbor:"3,keyasint,omitempty"`
	Len  int    `json:"len,omitempty" yaml:"len,omitempty" cbor:"4,keyasint,omitempty"`
	// Overlay marks a struct whose fields share storage; exactly one is encoded.
	Overlay  bool      `json:"overlay,omitempty" yaml:"overlay,omitempty" cbor:"5,keyasint,omitempty"`
	Fields   []Field   `json:"fields,omitempty" yaml:"fields,omitempty" cbor:"6,keyasint,omitempty"`
	Variants []Variant `json:"variants,omitempty" yaml:"variants,omitempty" cbor:"7,keyasint,omitempty"`
}

// Registry maps declarations to nodes. It is not safe for concurrent writes;
// each Builder owns one.
type Registry struct {
	nodes map[string]*Node
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// Add registers node under decl unless decl is already present, and reports
// whether it was inserted.
func (r *Registry) Add(decl string, node Node) bool {
	if _, ok := r.nodes[decl]; ok {
		return false
	}
	r.nodes[decl] = &node
	r.order = append(r.order, decl)

	return true
}

// reserve inserts an empty node of kind so recursive visits stop at decl,
// and returns it for the caller to fill in.
func (r *Registry) reserve(decl string, kind Kind) *Node {
	node := &Node{Kind: kind}
	r.nodes[decl] = node
	r.order = append(r.order, decl)

	return node
}

// Has reports whether decl is registered.
func (r *Registry) Has(decl string) bool {
	_, ok := r.nodes[decl]
	return ok
}

// Lookup returns the node registered under decl.
func (r *Registry) Lookup(decl string) (Node, bool) {
	node, ok := r.nodes[decl]
	if !ok {
		return Node{}, false
	}

	return *node, true
}

// Len returns the number of declarations.
func (r *Registry) Len() int {
	return len(r.order)
}

// Declarations returns the declarations in registration order.
func (r *Registry) Declarations() []string {
	return slices.Clone(r.order)
}

// Sorted returns the declarations in lexical order.
func (r *Registry) Sorted() []string {
	out := slices.Clone(r.order)
	slices.Sort(out)

	return out
}

// Count returns the number of nodes of kind.
func (r *Registry) Count(kind Kind) int {
	n := 0
	for _, node := range r.nodes {
		if node.Kind == kind {
			n++
		}
	}

	return n
}

// AppendCanonical writes the registry in canon encoding, declarations in
// lexical order, so equal registries produce equal bytes regardless of the
// order in which they were built.
func (r *Registry) AppendCanonical(w *wire.Writer) error {
	decls := r.Sorted()
	if err := w.WriteLength(len(decls)); err != nil {
		return err
	}

	for _, decl := range decls {
		node := r.nodes[decl]
		if err := w.WriteString(decl); err != nil {
			return err
		}
		w.WriteUint8(uint8(node.Kind))
		w.WriteUint32(uint32(node.Size)) //nolint:gosec
		if err := w.WriteString(node.Elem); err != nil {
			return err
		}
		w.WriteUint32(uint32(node.Len)) //nolint:gosec
		w.WriteBool(node.Overlay)
		if err := writeFields(w, node.Fields); err != nil {
			return err
		}
		if err := w.WriteLength(len(node.Variants)); err != nil {
			return err
		}
		for _, v := range node.Variants {
			if err := w.WriteString(v.Name); err != nil {
				return err
			}
			w.WriteTag(v.Tag)
			if err := writeFields(w, v.Fields); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeFields(w *wire.Writer, fields []Field) error {
	if err := w.WriteLength(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := w.WriteString(f.Name); err != nil {
			return err
		}
		if err := w.WriteString(f.Ref); err != nil {
			return err
		}
	}

	return nil
}

// Fingerprint returns the xxHash64 of the canonical encoding. Two parties
// holding registries with equal fingerprints agree on every wire layout.
func (r *Registry) Fingerprint() uint64 {
	w := wire.NewWriter()
	defer w.Release()

	if err := r.AppendCanonical(w); err != nil {
		// Only lengths above 4 GiB fail, which no registry reaches.
		panic(err)
	}

	return hash.Checksum(w.Bytes())
}

// String renders the registry one declaration per line, in lexical order.
func (r *Registry) String() string {
	var sb strings.Builder
	for _, decl := range r.Sorted() {
		node := r.nodes[decl]
		sb.WriteString(decl)
		sb.WriteString(" = ")
		writeNode(&sb, node)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, node *Node) {
	switch node.Kind {
	case KindPrimitive:
		fmt.Fprintf(sb, "primitive(%d)", node.Size)
	case KindSequence:
		fmt.Fprintf(sb, "sequence(%s)", node.Elem)
	case KindFixed:
		fmt.Fprintf(sb, "fixed(%d, %s)", node.Len, node.Elem)
	case KindStruct:
		if node.Overlay {
			sb.WriteString("overlay")
		} else {
			sb.WriteString("struct")
		}
		writeFieldList(sb, node.Fields)
	case KindEnum:
		sb.WriteString("enum{")
		for i, v := range node.Variants {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s=%d", v.Name, v.Tag)
			if len(v.Fields) > 0 {
				writeFieldList(sb, v.Fields)
			}
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("unknown")
	}
}

func writeFieldList(sb *strings.Builder, fields []Field) {
	sb.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Ref)
	}
	sb.WriteByte('}')
}
