package workflow

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/skeinhq/skein/internal/types"
)

//go:embed packs/*.yaml
var packFS embed.FS

// CorePack is always loaded; it defines the baseline issue types.
const CorePack = "core"

// DefaultPacks are enabled when project config omits enabled_packs
// entirely. An explicitly empty list loads only the core pack.
var DefaultPacks = []string{"agile"}

// pack is the on-disk shape of one template pack.
type pack struct {
	Name      string     `yaml:"name"`
	Templates []Template `yaml:"templates"`
}

// Registry is the immutable template set for one store. Built once at
// store initialization; all methods are pure reads.
type Registry struct {
	templates map[string]*Template
	packs     []string
}

// Load builds a registry from the core pack plus the named optional packs.
// A nil slice means "use defaults"; an empty non-nil slice loads only the
// core pack.
func Load(enabledPacks []string) (*Registry, error) {
	if enabledPacks == nil {
		enabledPacks = DefaultPacks
	}
	names := append([]string{CorePack}, enabledPacks...)

	r := &Registry{templates: make(map[string]*Template)}
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := r.loadPack(name); err != nil {
			return nil, err
		}
		r.packs = append(r.packs, name)
	}
	return r, nil
}

func (r *Registry) loadPack(name string) error {
	data, err := packFS.ReadFile("packs/" + name + ".yaml")
	if err != nil {
		return types.Validationf("unknown template pack %q", name)
	}
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing template pack %s: %w", name, err)
	}
	for i := range p.Templates {
		tpl := &p.Templates[i]
		if err := tpl.compile(); err != nil {
			return fmt.Errorf("template pack %s: %w", name, err)
		}
		if _, dup := r.templates[tpl.Name]; dup {
			return fmt.Errorf("template pack %s: template %s already defined by another pack", name, tpl.Name)
		}
		r.templates[tpl.Name] = tpl
	}
	return nil
}

// Get returns the template for an issue type.
func (r *Registry) Get(issueType string) (*Template, error) {
	tpl, ok := r.templates[issueType]
	if !ok {
		return nil, &types.NotFoundError{Kind: "template", ID: issueType}
	}
	return tpl, nil
}

// Names lists the loaded template names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Packs lists the packs that were loaded, in load order.
func (r *Registry) Packs() []string {
	return append([]string(nil), r.packs...)
}
