// Package rules loads the optional YAML file that overrides the compiled
// safety and routing rule tables.
package rules

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/router"
)

// Rules carries every overridable rule table. A nil slice keeps the compiled
// default list; an explicitly empty list disables that table.
type Rules struct {
	UnsafeKeywords  []string                 `yaml:"unsafe_keywords"`
	RefusalPhrases  []string                 `yaml:"refusal_phrases"`
	ReadingPatterns []string                 `yaml:"reading_patterns"`
	StemPatterns    []string                 `yaml:"stem_patterns"`
	Categories      []router.CategoryMarkers `yaml:"categories"`
	SeedQueries     []string                 `yaml:"seed_queries"`
}

// Load reads the rules file at path. An empty path means no overrides were
// configured and returns zero Rules; a path that cannot be read or parsed is
// a configuration error.
func Load(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "cannot read rules file", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "cannot parse rules file", err)
	}
	return &r, nil
}

// RouterConfig exposes the routing overrides in the shape router.New takes.
func (r *Rules) RouterConfig() router.Config {
	return router.Config{
		ReadingPatterns: r.ReadingPatterns,
		StemPatterns:    r.StemPatterns,
		Categories:      r.Categories,
	}
}
