package plugins

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	normalModule = `
effects:
  normal_loaded: true
classes:
  - name: NormalPluginIE
    attributes:
      REPLACED: false
`
	replacedNormalModule = `
effects:
  replaced_loaded: true
classes:
  - name: NormalPluginIE
    attributes:
      REPLACED: true
`
	ignoreModule = `
effects:
  ignore_loaded: true
classes:
  - name: IgnorePluginIE
`
	overrideModule = `
classes:
  - name: OverrideGenericIE
    extends: GenericIE
    plugin_name: override
    attributes:
      TEST_FIELD: override
`
	underscoreOverrideModule = `
classes:
  - name: _UnderscoreOverrideGenericIE
    extends: GenericIE
    plugin_name: underscore-override
    attributes:
      SECONDARY_TEST_FIELD: underscore-override
`
)

// writeTree writes files (slash separated paths) below root
func writeTree(t *testing.T, root string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

// extractorFiles places modules under the extractor package of the default namespace
func extractorFiles(modules map[string]string) map[string]string {
	out := make(map[string]string, len(modules))
	for name, content := range modules {
		out[DefaultNamespace+"/extractor/"+name] = content
	}
	return out
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newExtractorSpec(t *testing.T) *CapabilitySpec {
	t.Helper()
	full := NewRegistry("extractors")
	require.NoError(t, full.Register(NewClass("GenericIE", "generic", map[string]any{
		"TEST_FIELD": "generic",
	})))
	require.NoError(t, full.Register(NewClass("YoutubeIE", "youtube", nil)))
	return &CapabilitySpec{
		PackagePath:    "extractor",
		RequiredSuffix: "IE",
		FullRegistry:   full,
		PluginRegistry: NewRegistry("plugin-extractors"),
	}
}

func newTestSession(roots ...string) *Session {
	return NewSession(
		WithSearchRoots(roots...),
		WithDefaultDirectories(func() []string { return nil }),
		WithLogger(quietLogger()),
		WithDisabled(false),
	)
}

// scenarioRoot builds the standard plugin tree used by most tests
func scenarioRoot(t *testing.T) string {
	t.Helper()
	return writeTree(t, t.TempDir(), extractorFiles(map[string]string{
		"normal.yaml":      normalModule,
		"_ignore.yaml":     ignoreModule,
		"override.yaml":    overrideModule,
		"overridetwo.yaml": underscoreOverrideModule,
	}))
}

func diagnosticsOfKind(s *Session, kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Diagnostics() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
