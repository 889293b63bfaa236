// Package algorithm is the static catalog of learning algorithms: their
// capabilities, hyperparameter forms, validation rules, tuning search space
// and cost formula. The catalog is loaded once at startup and is read-only
// afterwards.
package algorithm

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidCatalog = errors.New("algorithm: invalid catalog")
)

var validate = validator.New()

//go:embed catalog.yaml
var builtinCatalog []byte

// OptunaCost prices automated hyperparameter tuning.
type OptunaCost struct {
	PerTrial  float64 `yaml:"perTrial" json:"perTrial" validate:"gte=0"`
	MaxTrials int     `yaml:"maxTrials" json:"maxTrials" validate:"gte=0"`
}

// CostConfig holds the catalog-wide pricing parameters.
type CostConfig struct {
	Optuna OptunaCost `yaml:"optuna" json:"optuna"`
}

// Catalog is the on-disk shape of the algorithm catalog.
type Catalog struct {
	Cost       CostConfig   `yaml:"cost" json:"cost"`
	Algorithms []Descriptor `yaml:"algorithms" json:"algorithms" validate:"required,min=1,dive"`
}

// Registry indexes descriptors by id.
type Registry struct {
	byID  map[string]*Descriptor
	order []string
	cost  CostConfig
}

// New validates the catalog and builds a registry from it.
func New(c Catalog) (*Registry, error) {
	if err := validateCatalog(c); err != nil {
		return nil, err
	}

	r := &Registry{
		byID: make(map[string]*Descriptor, len(c.Algorithms)),
		cost: c.Cost,
	}
	for i := range c.Algorithms {
		d := c.Algorithms[i]
		r.byID[d.ID] = &d
		r.order = append(r.order, d.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Load decodes a YAML catalog from rd.
func Load(rd io.Reader) (*Registry, error) {
	var c Catalog
	if err := yaml.NewDecoder(rd).Decode(&c); err != nil {
		return nil, fmt.Errorf("algorithm: decode catalog: %w", err)
	}
	return New(c)
}

// LoadFile decodes the YAML catalog at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("algorithm: open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded catalog.
func Default() *Registry {
	defaultOnce.Do(func() {
		var c Catalog
		if err := yaml.Unmarshal(builtinCatalog, &c); err != nil {
			panic(fmt.Sprintf("algorithm: embedded catalog: %v", err))
		}
		r, err := New(c)
		if err != nil {
			panic(fmt.Sprintf("algorithm: embedded catalog: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Get returns the descriptor for id. Unknown ids (and a nil registry) yield
// nil, false; callers treat that as "not configured yet".
func (r *Registry) Get(id string) (*Descriptor, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.byID[id]
	return d, ok
}

// List returns every descriptor sorted by id.
func (r *Registry) List() []*Descriptor {
	if r == nil {
		return nil
	}
	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ForProblemType returns the descriptors that support p, sorted by id.
func (r *Registry) ForProblemType(p ProblemType) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.List() {
		if d.Supports(p) {
			out = append(out, d)
		}
	}
	return out
}

// Cost returns the catalog-wide pricing parameters.
func (r *Registry) Cost() CostConfig {
	if r == nil {
		return CostConfig{}
	}
	return r.cost
}

func validateCatalog(c Catalog) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	var errs []error
	seen := make(map[string]bool, len(c.Algorithms))
	for i := range c.Algorithms {
		d := &c.Algorithms[i]
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("duplicate algorithm id %q", d.ID))
		}
		seen[d.ID] = true
		errs = append(errs, validateDescriptor(d)...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

func validateDescriptor(d *Descriptor) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: "+format, append([]any{d.ID}, args...)...))
	}

	keys := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if keys[f.Key] {
			fail("duplicate field key %q", f.Key)
		}
		keys[f.Key] = true
	}

	for _, f := range d.Fields {
		if f.DependsOn != nil && (f.DependsOn.Field == f.Key || !keys[f.DependsOn.Field]) {
			fail("field %q depends on unknown field %q", f.Key, f.DependsOn.Field)
		}
		if f.Kind.HasOptions() {
			if len(f.Options) == 0 {
				fail("field %q has no options", f.Key)
			}
			if f.Kind != KindMultiSelect && f.Default != nil && !f.HasOption(f.Default) {
				fail("field %q default %v is not an option", f.Key, f.Default)
			}
		}
		if f.Kind.IsNumeric() {
			n, ok := Number(f.Default)
			if f.Default != nil && !ok {
				fail("field %q default is not numeric", f.Key)
			}
			if ok && ((f.Min != nil && n < *f.Min) || (f.Max != nil && n > *f.Max)) {
				fail("field %q default %v is out of range", f.Key, f.Default)
			}
		}
	}

	for key, rules := range d.Validation.FieldRules {
		if !keys[key] {
			fail("rules reference unknown field %q", key)
		}
		for _, rule := range rules {
			if err := validate.Struct(rule); err != nil {
				fail("field %q: %v", key, err)
			}
		}
	}
	for _, rule := range d.Validation.CrossField {
		for _, key := range rule.fields() {
			if !keys[key] {
				fail("cross-field rule references unknown field %q", key)
			}
		}
	}

	for _, sp := range d.SearchSpace {
		if !keys[sp.Field] {
			fail("search space references unknown field %q", sp.Field)
		}
		if sp.Type == SearchCategorical && len(sp.Choices) == 0 {
			fail("search space for %q has no choices", sp.Field)
		}
		if sp.Type != SearchCategorical && sp.Low > sp.High {
			fail("search space for %q has low > high", sp.Field)
		}
	}

	if !subset(d.DefaultMetrics, d.SupportedMetrics) {
		fail("default metrics are not all supported")
	}
	if !subset(d.DefaultPlots, d.SupportedPlots) {
		fail("default plots are not all supported")
	}
	return errs
}

func subset(items, of []string) bool {
	set := make(map[string]bool, len(of))
	for _, s := range of {
		set[s] = true
	}
	for _, s := range items {
		if !set[s] {
			return false
		}
	}
	return true
}
