package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout.
//
//	name: "Front desk intake"
//	sections:
//	  - title: "Name"
//	    prompt: "What is your name?"
//	    fields: [name]
//	  - prompt: "Do you have insurance?"
//	    fields: [insurance]
//	    kind: single_choice
//	    choices: ["Yes", "No"]
type File struct {
	Name     string `yaml:"name"`
	Sections []Spec `yaml:"sections"`
}

// Load reads a YAML catalog from disk.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", path, err)
	}
	return c, nil
}

// LoadFromReader parses and validates a YAML catalog.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(file.Sections)
}
