package typedef

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/canon/errs"
)

// File is the YAML document accepted by LoadYAML.
//
//	namespace: ledger
//	types:
//	  - name: Entry
//	    params: [T]
//	    fields:
//	      - {name: id, type: uint64}
//	      - {name: memo, type: T}
//	      - {name: cache, type: "map[string]T", skip: true}
//	  - name: Op
//	    shape: sum
//	    discriminant: explicit
//	    variants:
//	      - {name: Nop}
//	      - {name: Push, discriminant: "10", shape: tuple, fields: [{type: uint64}]}
type File struct {
	Namespace string    `yaml:"namespace"`
	Types     []TypeDoc `yaml:"types"`
}

// TypeDoc is the YAML form of a Definition.
type TypeDoc struct {
	Name         string       `yaml:"name"`
	Shape        string       `yaml:"shape,omitempty"`
	Params       []string     `yaml:"params,omitempty"`
	Discriminant string       `yaml:"discriminant,omitempty"`
	Init         string       `yaml:"init,omitempty"`
	Capabilities string       `yaml:"capabilities,omitempty"`
	Fields       []FieldDoc   `yaml:"fields,omitempty"`
	Variants     []VariantDoc `yaml:"variants,omitempty"`
}

// FieldDoc is the YAML form of a Field.
type FieldDoc struct {
	Name   string            `yaml:"name,omitempty"`
	Type   string            `yaml:"type"`
	Skip   bool              `yaml:"skip,omitempty"`
	With   string            `yaml:"with,omitempty"`
	Bounds map[string]string `yaml:"bounds,omitempty"`
	Schema string            `yaml:"schema,omitempty"`
}

// VariantDoc is the YAML form of a Variant.
type VariantDoc struct {
	Name         string     `yaml:"name"`
	Discriminant string     `yaml:"discriminant,omitempty"`
	Shape        string     `yaml:"shape,omitempty"`
	Fields       []FieldDoc `yaml:"fields,omitempty"`
}

// LoadYAML decodes a File from r and builds a Universe from it.
// Unknown keys are rejected so typos in option names do not pass silently.
func LoadYAML(r io.Reader) (*Universe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: decoding definitions: %v", errs.ErrInvalidDefinition, err)
	}

	return file.Universe()
}

// Universe converts the document into validated definitions.
func (f *File) Universe() (*Universe, error) {
	u := NewUniverse(f.Namespace)
	for i := range f.Types {
		def, err := f.Types[i].Definition()
		if err != nil {
			return nil, err
		}
		if err := u.Add(def); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// Definition converts the YAML form into a Definition.
func (td *TypeDoc) Definition() (*Definition, error) {
	shape, err := ParseShape(td.Shape)
	if err != nil {
		return nil, errs.Definition(td.Name, "", err)
	}
	mode, err := ParseDiscriminantMode(td.Discriminant)
	if err != nil {
		return nil, errs.Definition(td.Name, "", err)
	}
	caps, err := ParseCapability(td.Capabilities)
	if err != nil {
		return nil, errs.Definition(td.Name, "", err)
	}

	def := &Definition{
		Name:         td.Name,
		Params:       td.Params,
		Shape:        shape,
		Mode:         mode,
		InitHook:     td.Init,
		Capabilities: caps,
	}

	if def.Fields, err = convertFields(td.Name, "", td.Fields, td.Params); err != nil {
		return nil, err
	}

	for i, vd := range td.Variants {
		vshape, err := ParseShape(vd.Shape)
		if err != nil {
			return nil, errs.Definition(td.Name, vd.Name, err)
		}
		fields, err := convertFields(td.Name, vd.Name+".", vd.Fields, td.Params)
		if err != nil {
			return nil, err
		}
		def.Variants = append(def.Variants, Variant{
			Name:         vd.Name,
			Index:        i,
			Discriminant: vd.Discriminant,
			Shape:        vshape,
			Fields:       fields,
		})
	}

	return def, nil
}

func convertFields(typeName, prefix string, docs []FieldDoc, params []string) ([]Field, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	fields := make([]Field, len(docs))
	for i, fd := range docs {
		name := fd.Name
		if name == "" {
			name = strconv.Itoa(i)
		}

		ref, err := ParseTypeRef(fd.Type, params...)
		if err != nil {
			return nil, errs.Definition(typeName, prefix+name, err)
		}

		var bounds map[string]Capability
		if fd.Bounds != nil {
			bounds = make(map[string]Capability, len(fd.Bounds))
			for param, capText := range fd.Bounds {
				c, err := ParseCapability(capText)
				if err != nil {
					return nil, errs.Definition(typeName, prefix+name, err)
				}
				bounds[param] = c
			}
		}

		fields[i] = Field{
			Name:       name,
			Index:      i,
			Type:       ref,
			Skip:       fd.Skip,
			With:       fd.With,
			Bounds:     bounds,
			SchemaWith: fd.Schema,
		}
	}

	return fields, nil
}
