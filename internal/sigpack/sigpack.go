// Package sigpack loads a user-supplied YAML document of extra anti-debug
// string patterns, merged into internal/antidebug's built-in category
// table so the scanner is extensible without a recompile.
package sigpack

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xWelsh/rekit/internal/rekiterr"
)

// Categories a signature pack is allowed to contribute to. Kept in sync
// with internal/antidebug's built-in category set.
var validCategories = map[string]bool{
	"ptrace":     true,
	"timing":     true,
	"parent":     true,
	"ld_preload": true,
}

// Pack is a parsed signature document.
type Pack struct {
	Categories map[string][]string `yaml:"categories"`
}

// Load reads and validates a signature pack from path.
func Load(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rekiterr.FormatError{Op: "sigpack read", Err: err}
	}
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &rekiterr.FormatError{Op: "sigpack parse", Err: err}
	}
	for cat := range p.Categories {
		if !validCategories[cat] {
			return nil, &rekiterr.FormatError{Op: "sigpack validate", Err: unknownCategoryError(cat)}
		}
	}
	return &p, nil
}

type unknownCategoryError string

func (e unknownCategoryError) Error() string {
	return "sigpack: unknown category " + string(e)
}
