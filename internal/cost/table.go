package cost

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/flip-estimator/internal/model"
)

//go:embed default_costs.yaml
var defaultCostsYAML []byte

// ErrNoCostProfile is returned when the table has no row for a
// category/quality/zone combination.
var ErrNoCostProfile = eris.New("cost: no pricing data")

// Table is a read-only snapshot of reform cost profiles.
type Table struct {
	Profiles []model.ReformCostProfile
}

type tableFile struct {
	Profiles []model.ReformCostProfile `yaml:"profiles"`
	Items    map[model.ReformCategory]struct {
		Included []string `yaml:"included"`
		Excluded []string `yaml:"excluded"`
	} `yaml:"items"`
}

// ParseTable decodes a YAML cost table. Category-level item lists fill in
// profiles that do not declare their own.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "cost: parse table")
	}
	for i := range f.Profiles {
		p := &f.Profiles[i]
		items, ok := f.Items[p.Category]
		if !ok {
			continue
		}
		if len(p.IncludedItems) == 0 {
			p.IncludedItems = items.Included
		}
		if len(p.ExcludedItems) == 0 {
			p.ExcludedItems = items.Excluded
		}
	}
	t := &Table{Profiles: f.Profiles}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTable reads a YAML cost table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cost: read table %s", path)
	}
	return ParseTable(data)
}

// DefaultTable returns the embedded generic cost table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultCostsYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Merge returns a table holding t's profiles followed by extra.
func (t *Table) Merge(extra []model.ReformCostProfile) *Table {
	out := make([]model.ReformCostProfile, 0, len(t.Profiles)+len(extra))
	out = append(out, t.Profiles...)
	out = append(out, extra...)
	return &Table{Profiles: out}
}

// Validate checks every profile for a known category, quality, and positive cost.
func (t *Table) Validate() error {
	var errs []string
	for i, p := range t.Profiles {
		if _, err := model.ParseReformCategory(string(p.Category)); err != nil {
			errs = append(errs, err.Error())
		}
		if _, err := model.ParseReformQuality(string(p.Quality)); err != nil {
			errs = append(errs, err.Error())
		}
		if p.CostPerArea <= 0 {
			errs = append(errs, fmt.Sprintf("profile %d: cost_per_area must be > 0", i))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("cost: invalid table: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Lookup returns the profile for category and quality, preferring a row for
// zone over a generic one and the most recent year among equals.
func (t *Table) Lookup(category model.ReformCategory, quality model.ReformQuality, zone string) (model.ReformCostProfile, error) {
	var zoned, generic *model.ReformCostProfile
	for i := range t.Profiles {
		p := &t.Profiles[i]
		if p.Category != category || p.Quality != quality {
			continue
		}
		switch {
		case p.Zone == "":
			if generic == nil || p.Year > generic.Year {
				generic = p
			}
		case zone != "" && strings.EqualFold(p.Zone, zone):
			if zoned == nil || p.Year > zoned.Year {
				zoned = p
			}
		}
	}
	if zoned != nil {
		return *zoned, nil
	}
	if generic != nil {
		return *generic, nil
	}
	return model.ReformCostProfile{}, eris.Wrapf(ErrNoCostProfile, "category %s, quality %s, zone %q", category, quality, zone)
}
