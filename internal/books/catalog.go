package books

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed data/sample.yaml
var sampleYAML []byte

type catalogFile struct {
	Books []Book `yaml:"books"`
}

// ParseCatalog decodes a YAML catalog document ("books:" list). Duplicate
// and empty IDs are dropped.
func ParseCatalog(data []byte) ([]Book, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return Dedupe(cf.Books), nil
}

// LoadCatalog reads a YAML catalog file from disk.
func LoadCatalog(path string) ([]Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

var sample []Book

func init() {
	var err error
	sample, err = ParseCatalog(sampleYAML)
	if err != nil {
		panic(fmt.Sprintf("books: embedded sample catalog: %v", err))
	}
}

// Sample returns a copy of the built-in candidate set.
func Sample() []Book {
	return slices.Clone(sample)
}
