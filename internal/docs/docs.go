// Package docs serves the embedded command reference used by script authors.
package docs

import (
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/cadbridge/cadbridge/internal/shared/errs"
	"github.com/cadbridge/cadbridge/internal/shared/types"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Commands []types.CommandDoc `yaml:"commands"`
}

// Catalog is the loaded command reference.
type Catalog struct {
	commands []types.CommandDoc
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded catalog. The result is cached after the first call.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		var file catalogFile
		if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
			loadErr = errs.Newf(errs.KindRuntime, "invalid command catalog: %v", err)
			return
		}
		loaded = &Catalog{commands: file.Commands}
	})
	return loaded, loadErr
}

// All returns every command in the catalog.
func (c *Catalog) All() []types.CommandDoc {
	out := make([]types.CommandDoc, len(c.commands))
	copy(out, c.commands)
	return out
}

// Search returns commands whose name or description contains the query,
// case-insensitively. An empty query matches everything. A non-empty
// category restricts results to that category.
func (c *Catalog) Search(query, category string) []types.CommandDoc {
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.ToLower(strings.TrimSpace(category))

	out := make([]types.CommandDoc, 0, len(c.commands))
	for _, cmd := range c.commands {
		if category != "" && strings.ToLower(cmd.Category) != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(cmd.Name), query) &&
			!strings.Contains(strings.ToLower(cmd.Description), query) {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// Categories returns the distinct categories in sorted order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, cmd := range c.commands {
		seen[cmd.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
