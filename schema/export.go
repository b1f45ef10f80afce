package schema

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/canon/errs"
)

// Format selects the export encoding of a Document.
type Format uint8

const (
	FormatText Format = iota + 1
	FormatJSON
	FormatYAML
	FormatCBOR
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

// ParseFormat parses the String form of a Format.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{FormatText, FormatJSON, FormatYAML, FormatCBOR} {
		if f.String() == s {
			return f, nil
		}
	}

	return 0, fmt.Errorf("%w: schema format %q", errs.ErrInvalidDefinition, s)
}

// Entry is one declaration of a Document.
type Entry struct {
	Declaration string `json:"declaration" yaml:"declaration" cbor:"1,keyasint"`
	Node        Node   `json:"node" yaml:"node" cbor:"2,keyasint"`
}

// Document is a serializable snapshot of a Registry.
type Document struct {
	Root string `json:"root,omitempty" yaml:"root,omitempty" cbor:"1,keyasint,omitempty"`
	// Fingerprint is the hex form of Registry.Fingerprint.
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint" cbor:"2,keyasint"`
	Entries     []Entry `json:"entries" yaml:"entries" cbor:"3,keyasint"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	cborEnc, err = encOptions.EncMode()
	if err != nil {
		panic("schema: CBOR encoder initialization failed: " + err.Error())
	}

	cborDec, err = cbor.DecOptions{TextUnmarshaler: cbor.TextUnmarshalerTextString}.DecMode()
	if err != nil {
		panic("schema: CBOR decoder initialization failed: " + err.Error())
	}
}

// Document snapshots the registry with declarations in lexical order.
func (r *Registry) Document(root string) *Document {
	decls := r.Sorted()
	doc := &Document{
		Root:        root,
		Fingerprint: strconv.FormatUint(r.Fingerprint(), 16),
		Entries:     make([]Entry, 0, len(decls)),
	}
	for _, decl := range decls {
		doc.Entries = append(doc.Entries, Entry{Declaration: decl, Node: *r.nodes[decl]})
	}

	return doc
}

// Registry rebuilds a registry from the document and verifies its fingerprint.
func (d *Document) Registry() (*Registry, error) {
	r := NewRegistry()
	for _, e := range d.Entries {
		if !r.Add(e.Declaration, e.Node) {
			return nil, fmt.Errorf("%w: duplicate schema declaration %s", errs.ErrInvalidDefinition, e.Declaration)
		}
	}

	if d.Fingerprint != "" {
		if got := strconv.FormatUint(r.Fingerprint(), 16); got != d.Fingerprint {
			return nil, fmt.Errorf("%w: schema fingerprint %s, document says %s",
				errs.ErrInvalidDefinition, got, d.Fingerprint)
		}
	}

	return r, nil
}

// Write encodes the document to w in format.
func (d *Document) Write(w io.Writer, format Format) error {
	switch format {
	case FormatText:
		r, err := d.Registry()
		if err != nil {
			return err
		}
		if d.Root != "" {
			if _, err := fmt.Fprintf(w, "root %s\n", d.Root); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, "fingerprint %s\n%s", d.Fingerprint, r.String())

		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}

		return enc.Close()
	case FormatCBOR:
		return cborEnc.NewEncoder(w).Encode(d)
	default:
		return fmt.Errorf("%w: schema format %d", errs.ErrInvalidDefinition, format)
	}
}

// Marshal returns the document encoded in format.
func (d *Document) Marshal(format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf, format); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ReadDocument decodes a document written by Write. The text format is
// not readable.
func ReadDocument(r io.Reader, format Format) (*Document, error) {
	doc := &Document{}

	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(doc)
	case FormatCBOR:
		err = cborDec.NewDecoder(r).Decode(doc)
	default:
		return nil, fmt.Errorf("%w: cannot read schema format %s", errs.ErrInvalidDefinition, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: schema document: %w", errs.ErrInvalidDefinition, err)
	}

	return doc, nil
}
