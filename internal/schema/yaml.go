package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Models []struct {
		Name         string           `yaml:"name"`
		SubjectField string           `yaml:"subject_field"`
		Fields       map[string]Class `yaml:"fields"`
	} `yaml:"models"`
}

// LoadYAML registers every model in a document of the form:
//
//	models:
//	  - name: patient
//	    subject_field: patient_id
//	    fields:
//	      email: PII
//	      diagnosis: PHI
func LoadYAML(r io.Reader, reg *Registry) error {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode schema document: %w", err)
	}
	for _, m := range doc.Models {
		err := reg.Register(ModelSchema{Name: m.Name, SubjectField: m.SubjectField, Fields: m.Fields})
		if err != nil {
			return fmt.Errorf("register model %q: %w", m.Name, err)
		}
	}
	return nil
}

// LoadFile registers the models in the YAML file at path.
func LoadFile(path string, reg *Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f, reg)
}
