package schema

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/syssam/objgraph"
)

// File is the YAML representation of a model.
//
//	entities:
//	  - name: Company
//	    attributes:
//	      - {name: name, type: string, indexed: true}
//	relationships:
//	  - {one: Company, many: Employee, oneName: company, manyName: employees, deleteRule: cascade}
type File struct {
	Entities      []EntityFile       `yaml:"entities"`
	Relationships []RelationshipFile `yaml:"relationships"`
}

// EntityFile declares one entity.
type EntityFile struct {
	Name       string          `yaml:"name"`
	Attributes []AttributeFile `yaml:"attributes"`
}

// AttributeFile declares one attribute.
type AttributeFile struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Optional  bool   `yaml:"optional"`
	Indexed   bool   `yaml:"indexed"`
	Immutable bool   `yaml:"immutable"`
}

// RelationshipFile declares one one-to-many relationship pair.
type RelationshipFile struct {
	One         string `yaml:"one"`
	Many        string `yaml:"many"`
	OneName     string `yaml:"oneName"`
	ManyName    string `yaml:"manyName"`
	DeleteRule  string `yaml:"deleteRule"`
	InverseRule string `yaml:"inverseRule"`
	MaxCount    int    `yaml:"maxCount"`
}

// LoadYAML reads a model file and finalizes it into a Schema.
// Unknown keys are rejected.
func LoadYAML(r io.Reader, opts ...Option) (*Schema, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("objgraph: empty model file")
		}
		return nil, fmt.Errorf("objgraph: decode model: %w", err)
	}
	return f.Build(opts...)
}

// Build declares the file contents on a new Builder and finalizes it.
func (f *File) Build(opts ...Option) (*Schema, error) {
	b := NewBuilder(opts...)
	for _, ef := range f.Entities {
		if _, err := b.DefineEntity(ef.Name); err != nil {
			return nil, err
		}
		for _, af := range ef.Attributes {
			typ, err := objgraph.ParseKind(af.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", ef.Name, af.Name, err)
			}
			var opts []AttrOption
			if af.Optional {
				opts = append(opts, Optional())
			}
			if af.Indexed {
				opts = append(opts, Indexed())
			}
			if af.Immutable {
				opts = append(opts, Immutable())
			}
			if err := b.addAttribute(ef.Name, af.Name, typ, opts...); err != nil {
				return nil, err
			}
		}
	}
	for _, rf := range f.Relationships {
		rule, err := ParseDeleteRule(rf.DeleteRule)
		if err != nil {
			return nil, err
		}
		inverse, err := ParseDeleteRule(rf.InverseRule)
		if err != nil {
			return nil, err
		}
		err = b.DefineOneToMany(rf.One, rf.Many, rf.OneName, rf.ManyName, rule,
			InverseRule(inverse), MaxCount(rf.MaxCount))
		if err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}
