package plan

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a Source serving copies of plans.
func NewInMemSource(plans ...Plan) Source {
	cp := make([]Plan, len(plans))
	for i, p := range plans {
		cp[i] = p.clone()
	}
	return &inMemSource{plans: cp}
}

func (s *inMemSource) Load(context.Context) ([]Plan, error) {
	out := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.clone()
	}
	return out, nil
}

// catalogFile is the YAML layout of a plan catalog. Prices are strings so
// they parse exactly.
type catalogFile struct {
	Plans []struct {
		Plan  `yaml:",inline"`
		Price string `yaml:"price"`
	} `yaml:"plans"`
}

type yamlSource struct {
	plans []Plan
}

// NewYAMLSource parses a catalog:
//
//	plans:
//	  - id: starter
//	    name: Starter
//	    price: "49.90"
//	    interval: monthly
//	    trial_days: 14
//	    active: true
//	    public: true
//	    version: 1
//	    limits: {users: 2, professionals: 3, clients: 500, appointments_per_month: 300, storage_mb: 512}
//	    features: [online_booking, reminders]
func NewYAMLSource(r io.Reader) (Source, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadPlans, err)
	}

	plans := make([]Plan, 0, len(file.Plans))
	for _, raw := range file.Plans {
		p := raw.Plan
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: plan %q: price %q: %w", ErrInvalidPlanConfiguration, p.ID, raw.Price, err)
		}
		p.Price = price
		plans = append(plans, p)
	}
	return &yamlSource{plans: plans}, nil
}

// LoadYAMLFile opens path and parses it with NewYAMLSource.
func LoadYAMLFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadPlans, err)
	}
	defer f.Close()
	return NewYAMLSource(f)
}

func (s *yamlSource) Load(context.Context) ([]Plan, error) {
	out := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.clone()
	}
	return out, nil
}
