// Package seed provides the default catalog and store profile used on first
// run and by catalog resets. A YAML file with the same layout as the
// embedded default can replace them.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ariefcatur/go-pos-terminal/internal/money"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/receipt"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type itemDoc struct {
	ID       string `yaml:"id,omitempty"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Price    string `yaml:"price"`
	Stock    int    `yaml:"stock"`
}

type profileDoc struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Footer  string `yaml:"footer"`
}

type document struct {
	Profile profileDoc `yaml:"profile"`
	Catalog []itemDoc  `yaml:"catalog"`
}

// Data is a parsed seed document.
type Data struct {
	Profile receipt.Profile
	items   []itemDoc
}

// Default returns the embedded seed.
func Default() *Data {
	d, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded default is invalid: %v", err))
	}
	return d
}

// Load reads a seed file; an empty path yields the embedded default.
// Sections missing from the file are taken from the default.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	def := Default()
	if d.Profile == (receipt.Profile{}) {
		d.Profile = def.Profile
	}
	if len(d.items) == 0 {
		d.items = def.items
	}
	return d, nil
}

func Parse(b []byte) (*Data, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	for i, it := range doc.Catalog {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("catalog[%d]: name is required", i)
		}
		if _, err := money.Parse(it.Price); err != nil {
			return nil, fmt.Errorf("catalog[%d] %s: price: %w", i, it.Name, err)
		}
		if it.Stock < 0 {
			return nil, fmt.Errorf("catalog[%d] %s: negative stock", i, it.Name)
		}
	}
	return &Data{
		Profile: receipt.Profile{
			Name:    doc.Profile.Name,
			Address: doc.Profile.Address,
			Footer:  doc.Profile.Footer,
		},
		items: doc.Catalog,
	}, nil
}

// Catalog builds a fresh catalog. Entries without an id get a new uuid on
// every call, so each reset yields new item ids.
func (d *Data) Catalog() []pos.Item {
	out := make([]pos.Item, 0, len(d.items))
	for _, it := range d.items {
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, pos.Item{
			ID:        id,
			Name:      it.Name,
			Category:  it.Category,
			UnitPrice: money.MustParse(it.Price),
			Stock:     it.Stock,
		})
	}
	return out
}
