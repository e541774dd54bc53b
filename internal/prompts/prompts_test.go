package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransformEmbedded(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, DefaultTransform)
	assert.Contains(t, DefaultTransform, "chat thread")
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	template, err := registry.Resolve(DefaultTemplateName)
	require.NoError(t, err)
	assert.Equal(t, DefaultTransform, template.SystemPrompt)
	assert.Empty(t, template.DatabaseID)
}

func TestResolve_EmptyNameFallsBackToDefault(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	template, err := registry.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplateName, template.Name)
}

func TestResolve_UnknownName(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	_, err := registry.Resolve("does-not-exist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func writeTemplatesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	t.Parallel()

	path := writeTemplatesFile(t, `
templates:
  - name: incident-report
    system_prompt: "Write an incident report."
    database_id: db-incidents
  - name: destination-only
    database_id: db-misc
`)

	registry, err := LoadRegistry(path)
	require.NoError(t, err)

	incident, err := registry.Resolve("incident-report")
	require.NoError(t, err)
	assert.Equal(t, "Write an incident report.", incident.SystemPrompt)
	assert.Equal(t, "db-incidents", incident.DatabaseID)

	// A template without a system prompt inherits the default one.
	misc, err := registry.Resolve("destination-only")
	require.NoError(t, err)
	assert.Equal(t, DefaultTransform, misc.SystemPrompt)
	assert.Equal(t, "db-misc", misc.DatabaseID)

	// The default template is still available.
	_, err = registry.Resolve(DefaultTemplateName)
	assert.NoError(t, err)

	assert.ElementsMatch(t, []string{"default", "incident-report", "destination-only"}, registry.Names())
}

func TestLoadRegistry_OverridesDefault(t *testing.T) {
	t.Parallel()

	path := writeTemplatesFile(t, `
templates:
  - name: default
    system_prompt: "House style rewrite."
`)

	registry, err := LoadRegistry(path)
	require.NoError(t, err)

	template, err := registry.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "House style rewrite.", template.SystemPrompt)
}

func TestLoadRegistry_MissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	registry, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	_, err = registry.Resolve(DefaultTemplateName)
	assert.NoError(t, err)
}

func TestLoadRegistry_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()

	registry, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultTemplateName}, registry.Names())
}

func TestLoadRegistry_RejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeTemplatesFile(t, "templates: [")

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestLoadRegistry_RejectsUnnamedTemplate(t *testing.T) {
	t.Parallel()

	path := writeTemplatesFile(t, `
templates:
  - system_prompt: "No name here."
`)

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}
