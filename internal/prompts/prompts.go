// Package prompts contains the embedded default transform prompt and the
// registry of named transform templates loaded from an optional YAML file.
package prompts

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scribehq/scribe/internal/workflow"
)

// DefaultTemplateName is the template used when a run names none.
const DefaultTemplateName = "default"

// DefaultTransform contains the embedded content of default-transform.md
//
//go:embed default-transform.md
var DefaultTransform string

// registryFile is the on-disk shape of a templates file.
type registryFile struct {
	Templates []workflow.Template `yaml:"templates"`
}

// Registry resolves template names to their definitions. It always contains
// the embedded default template; a YAML file adds or overrides entries.
type Registry struct {
	templates map[string]*workflow.Template
}

// NewRegistry creates a registry holding only the embedded default template.
func NewRegistry() *Registry {
	def := &workflow.Template{
		Name:         DefaultTemplateName,
		SystemPrompt: DefaultTransform,
	}
	return &Registry{
		templates: map[string]*workflow.Template{DefaultTemplateName: def},
	}
}

// LoadRegistry creates a registry from a YAML templates file. A missing file
// is not an error; the registry then holds only the default template.
func LoadRegistry(path string) (*Registry, error) {
	registry := NewRegistry()
	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return registry, nil
		}
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}

	for i := range file.Templates {
		template := file.Templates[i]
		if template.Name == "" {
			return nil, fmt.Errorf("template at index %d has no name", i)
		}
		if template.SystemPrompt == "" {
			// A template may override only the destination; it inherits the
			// default system prompt.
			template.SystemPrompt = DefaultTransform
		}
		registry.templates[template.Name] = &template
	}

	return registry, nil
}

// Resolve implements workflow.TemplateResolver. An empty name resolves to
// the default template.
func (r *Registry) Resolve(name string) (*workflow.Template, error) {
	if name == "" {
		name = DefaultTemplateName
	}
	template, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %q is not defined", name)
	}
	return template, nil
}

// Names returns the defined template names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
