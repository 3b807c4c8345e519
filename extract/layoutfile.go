package extract

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type layoutFile struct {
	Layouts []layoutEntry `yaml:"layouts"`
}

type layoutEntry struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"`
	Container string `yaml:"container"`
	Title     string `yaml:"title"`
	Image     string `yaml:"image"`
	ImageAttr string `yaml:"image_attr"`
	Price     string `yaml:"price"`
	Link      string `yaml:"link"`
	Timeout   string `yaml:"timeout"`
}

// LoadLayouts reads extra layouts from a YAML file, in file order.
func LoadLayouts(path string) ([]Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts file: %w", err)
	}
	return ParseLayouts(data)
}

// ParseLayouts decodes the YAML layouts document and validates every entry.
func ParseLayouts(data []byte) ([]Layout, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode layouts: %w", err)
	}

	layouts := make([]Layout, 0, len(f.Layouts))
	seen := make(map[string]struct{}, len(f.Layouts))
	for i, e := range f.Layouts {
		l := Layout{
			Name:      e.Name,
			Signature: e.Signature,
			Container: e.Container,
			Title:     e.Title,
			Image:     e.Image,
			ImageAttr: e.ImageAttr,
			Price:     e.Price,
			Link:      e.Link,
		}
		if e.Timeout != "" {
			d, err := time.ParseDuration(e.Timeout)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("layout %d (%s): invalid timeout %q", i, e.Name, e.Timeout)
			}
			l.Timeout = d
		}
		if _, err := NewStrategy(l); err != nil {
			return nil, fmt.Errorf("layout %d: %w", i, err)
		}
		if _, dup := seen[l.Name]; dup {
			return nil, fmt.Errorf("layout %d: duplicate name %q", i, l.Name)
		}
		seen[l.Name] = struct{}{}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// BuildStrategies compiles the built-in layouts followed by extra. Built-ins
// always come first; an extra layout reusing a built-in name is rejected.
func BuildStrategies(extra []Layout) ([]*Strategy, error) {
	strategies := DefaultStrategies()
	for _, builtin := range strategies {
		for _, l := range extra {
			if l.Name == builtin.Name() {
				return nil, fmt.Errorf("layout %q shadows a built-in layout", l.Name)
			}
		}
	}
	for _, l := range extra {
		s, err := NewStrategy(l)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}
