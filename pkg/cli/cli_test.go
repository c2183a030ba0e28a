package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/plugweave/pkg/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the user's config file and environment out of the test
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(plugins.DisableEnv, "")
}

func writePluginTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, plugins.DefaultNamespace, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func sampleTree(t *testing.T) string {
	return writePluginTree(t, map[string]string{
		"extractor/normal.yaml": `
classes:
  - name: NormalMixin
    attributes: {REAL_NAME: normal}
  - name: NormalPluginIE
    extends: NormalMixin
  - name: NormalHelperIE
    extends: NormalMixin
  - name: _NormalPatchIE
    extends: NormalPluginIE
    plugin_name: patched
`,
		"extractor/_ignore.yaml":    "classes: [{name: IgnorePluginIE}]",
		"postprocessor/normal.yaml": "classes: [{name: NormalPluginPP}]",
		"postprocessor/notes.txt":   "not a module",
	})
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--log-level", "error"))
	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"list", "dirs", "inspect", "watch", "serve", "pack", "validate"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "root", "no-plugins", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	isolate(t)
	_, err := execute(t, nil, "dirs", "--log-format", "xml")
	assert.Error(t, err)

	_, err = execute(t, nil, "dirs", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	out, err := execute(t, nil, "list", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "NormalPluginIE")
	assert.Contains(t, out, "NormalHelperIE")
	assert.Contains(t, out, "NormalPluginPP")
	assert.NotContains(t, out, "IgnorePluginIE")
	assert.True(t, strings.HasPrefix(out, "SPEC"))

	out, err = execute(t, nil, "list", "--root", root, "-o", "json", "extractor")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "extractor", rows[0]["spec"])
	assert.Equal(t, "NormalHelperIE", rows[0]["name"])
	assert.Equal(t, "normalhelper", rows[0]["lineage_name"])

	_, err = execute(t, nil, "list", "--root", root, "nosuchspec")
	assert.Error(t, err)

	_, err = execute(t, nil, "list", "--root", root, "-o", "xml")
	assert.Error(t, err)
}

func TestListCommand_NoPlugins(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	out, err := execute(t, nil, "list", "--root", root, "--no-plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugin classes found.")

	t.Setenv(plugins.DisableEnv, "1")
	out, err = execute(t, nil, "list", "--root", root, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestDirsCommand(t *testing.T) {
	isolate(t)
	a := sampleTree(t)
	b := t.TempDir()

	out, err := execute(t, nil, "dirs", "--root", a, "--root", b, "--root", a)
	require.NoError(t, err)
	assert.Equal(t, a+"\n"+b+"\n", out)

	out, err = execute(t, nil, "dirs", "--root", a, "--locations")
	require.NoError(t, err)
	assert.Contains(t, out, "extractor:")
	assert.Contains(t, out, filepath.Join(a, plugins.DefaultNamespace, "extractor"))
}

func TestInspectCommand(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	out, err := execute(t, nil, "inspect", "extractor", "NormalPluginIE", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "name: NormalPluginIE")
	assert.Contains(t, out, "lineage_name: normalplugin+patched")
	assert.Contains(t, out, "REAL_NAME: normal")

	out, err = execute(t, nil, "inspect", "extractor", "NormalHelperIE", "--root", root, "-o", "json")
	require.NoError(t, err)
	var info plugins.ClassInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "NormalMixin", info.Base)
	assert.Equal(t, "normal", info.Attributes["REAL_NAME"])

	_, err = execute(t, nil, "inspect", "extractor", "MissingIE", "--root", root)
	assert.Error(t, err)
	_, err = execute(t, nil, "inspect", "extractor", "--root", root)
	assert.Error(t, err)
}

func TestPackAndValidateCommands(t *testing.T) {
	isolate(t)
	root := sampleTree(t)
	archive := filepath.Join(t.TempDir(), "bundle.zip")

	out, err := execute(t, nil, "pack", root, archive)
	require.NoError(t, err)
	assert.Contains(t, out, archive)

	out, err = execute(t, nil, "list", "--root", archive, "-o", "json", "postprocessor")
	require.NoError(t, err)
	assert.Contains(t, out, "NormalPluginPP")

	// _ignore.yaml is reported as a warning
	out, err = execute(t, nil, "validate", root, archive)
	require.NoError(t, err)
	assert.Contains(t, out, "_ignore.yaml")
	assert.Contains(t, out, "warning")

	_, err = execute(t, nil, "validate", "--strict", root)
	assert.Error(t, err)

	broken := writePluginTree(t, map[string]string{"extractor/broken.yaml": "classes: ["})
	out, err = execute(t, nil, "validate", broken)
	assert.Error(t, err)
	assert.Contains(t, out, "broken.yaml")

	_, err = execute(t, nil, "pack", broken, filepath.Join(t.TempDir(), "broken.zip"))
	assert.Error(t, err)
	_, err = execute(t, nil, "pack", "--skip-validate", broken, filepath.Join(t.TempDir(), "broken.zip"))
	assert.NoError(t, err)
}

func TestValidateDefaultsToConfiguredRoots(t *testing.T) {
	isolate(t)
	root := writePluginTree(t, map[string]string{"extractor/ok.yaml": "classes: [{name: OkIE}]"})

	out, err := execute(t, nil, "validate", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, root+": ok\n", out)
}

func TestWatchAndServeStopOnCancel(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	for _, args := range [][]string{
		{"watch", "--root", root, "--debounce", "10ms"},
		{"serve", "--root", root, "--addr", "127.0.0.1:0", "--rescan", "@every 1h"},
	} {
		t.Run(args[0], func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			out, err := execute(t, ctx, args...)
			require.NoError(t, err)
			assert.Contains(t, out, "extractor: 2 plugin classes")
		})
	}

	_, err := execute(t, nil, "watch", "--root", root, "--rescan", "not a schedule")
	assert.Error(t, err)
}
