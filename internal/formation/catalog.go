package formation

import (
	_ "embed"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	MinTeamSize = 8
	MaxTeamSize = 11
)

var (
	ErrNoFormations     = errors.New("catalog defines no formations")
	ErrUnknownDefault   = errors.New("default formation is not defined")
	ErrDuplicateSlotKey = errors.New("duplicate slot key")
)

//go:embed formations.yaml
var builtin []byte

type Formation struct {
	Name      string   `yaml:"name"`
	Slots     []string `yaml:"slots"`
	TrimOrder []string `yaml:"trim_order"`
}

// SlotsFor returns the slot keys used by a team of the given size. Sizes are clamped to
// [MinTeamSize, MaxTeamSize]; smaller teams drop slots following TrimOrder.
func (f *Formation) SlotsFor(teamSize int) []string {
	drop := len(f.Slots) - ClampTeamSize(teamSize)
	if drop <= 0 {
		return slices.Clone(f.Slots)
	}

	removed := make(map[string]struct{}, drop)
	for _, key := range f.TrimOrder {
		if len(removed) == drop {
			break
		}
		removed[key] = struct{}{}
	}

	out := make([]string, 0, len(f.Slots)-len(removed))
	for _, key := range f.Slots {
		if _, ok := removed[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}

func (f *Formation) HasSlot(teamSize int, key string) bool {
	return slices.Contains(f.SlotsFor(teamSize), key)
}

type Catalog struct {
	defaultName string
	byName      map[string]*Formation
	names       []string
}

type catalogFile struct {
	Default    string       `yaml:"default"`
	Formations []*Formation `yaml:"formations"`
}

func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "decode formation catalog")
	}
	if len(file.Formations) == 0 {
		return nil, ErrNoFormations
	}

	c := &Catalog{
		defaultName: strings.TrimSpace(file.Default),
		byName:      make(map[string]*Formation, len(file.Formations)),
	}
	for _, f := range file.Formations {
		seen := make(map[string]struct{}, len(f.Slots))
		for _, key := range f.Slots {
			if _, ok := seen[key]; ok {
				return nil, errors.Wrapf(ErrDuplicateSlotKey, "%s in %s", key, f.Name)
			}
			seen[key] = struct{}{}
		}
		c.byName[f.Name] = f
		c.names = append(c.names, f.Name)
	}
	if _, ok := c.byName[c.defaultName]; !ok {
		return nil, errors.Wrap(ErrUnknownDefault, c.defaultName)
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(builtin)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *Catalog) Get(name string) (*Formation, bool) {
	f, ok := c.byName[name]
	return f, ok
}

func (c *Catalog) DefaultName() string {
	return c.defaultName
}

func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}

func ClampTeamSize(n int) int {
	return min(max(n, MinTeamSize), MaxTeamSize)
}
