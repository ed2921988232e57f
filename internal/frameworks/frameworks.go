// Package frameworks carries the catalog of conversion frameworks the
// advisor assesses steps against. The catalog ships as an embedded
// asset and is immutable at runtime.
package frameworks

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed frameworks.yaml
var catalogYAML []byte

// Framework describes one assessment lens. Behavioral frameworks are
// the ones whose assessments carry motivation and trigger scores.
type Framework struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Focus      string `yaml:"focus" json:"focus"`
	Behavioral bool   `yaml:"behavioral" json:"behavioral"`
}

var catalog []Framework

func init() {
	var doc struct {
		Frameworks []Framework `yaml:"frameworks"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		panic(fmt.Sprintf("frameworks: embedded catalog is invalid: %v", err))
	}
	if len(doc.Frameworks) == 0 {
		panic("frameworks: embedded catalog is empty")
	}
	catalog = doc.Frameworks
}

// Catalog returns the full framework list in catalog order.
func Catalog() []Framework {
	out := make([]Framework, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns every framework id in catalog order.
func IDs() []string {
	out := make([]string, len(catalog))
	for i, f := range catalog {
		out[i] = f.ID
	}
	return out
}

// ByID looks up one framework.
func ByID(id string) (Framework, bool) {
	for _, f := range catalog {
		if f.ID == id {
			return f, true
		}
	}
	return Framework{}, false
}

// ValidateIDs rejects requests naming frameworks the catalog does not
// carry.
func ValidateIDs(ids []string) error {
	for _, id := range ids {
		if _, ok := ByID(id); !ok {
			return fmt.Errorf("unknown framework %q", id)
		}
	}
	return nil
}
