package plugins

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTree(t *testing.T) {
	root := writeTree(t, t.TempDir(), extractorFiles(map[string]string{
		"normal.yaml":  normalModule,
		"_ignore.yaml": ignoreModule,
		"broken.yaml":  "classes: [",
		"warnings.yaml": `
exports: [MissingIE]
classes:
  - name: HelperMixin
  - name: _HiddenIE
  - name: PatchIE
    extends: GenericIE
`,
	}))
	spec := newExtractorSpec(t)

	errs := ValidateTree(root, "", []*CapabilitySpec{spec})
	require.NotEmpty(t, errs)
	assert.True(t, HasErrors(errs))

	byPath := map[string][]ValidationError{}
	for _, e := range errs {
		byPath[filepath.Base(e.Path)] = append(byPath[filepath.Base(e.Path)], e)
	}

	assert.NotContains(t, byPath, "normal.yaml")

	require.Len(t, byPath["_ignore.yaml"], 1)
	assert.Equal(t, SeverityWarning, byPath["_ignore.yaml"][0].Severity)

	require.Len(t, byPath["broken.yaml"], 1)
	assert.Equal(t, SeverityError, byPath["broken.yaml"][0].Severity)

	warnings := byPath["warnings.yaml"]
	require.Len(t, warnings, 4)
	fields := map[string]bool{}
	for _, w := range warnings {
		assert.Equal(t, SeverityWarning, w.Severity)
		fields[w.Field] = true
	}
	assert.True(t, fields["exports"])
	assert.True(t, fields["classes.HelperMixin"])
	assert.True(t, fields["classes._HiddenIE"])
	assert.True(t, fields["classes.PatchIE"])
}

func TestValidateTree_CleanTreeAndArchive(t *testing.T) {
	root := writeTree(t, t.TempDir(), extractorFiles(map[string]string{
		"normal.yaml":   normalModule,
		"override.yaml": overrideModule,
	}))
	spec := newExtractorSpec(t)
	assert.Empty(t, ValidateTree(root, DefaultNamespace, []*CapabilitySpec{spec}))

	archive, err := PackArchive(root, filepath.Join(t.TempDir(), "plugins.zip"))
	require.NoError(t, err)
	assert.Empty(t, ValidateTree(archive, DefaultNamespace, []*CapabilitySpec{spec}))
}

func TestValidateTree_NoNamespace(t *testing.T) {
	errs := ValidateTree(t.TempDir(), "", []*CapabilitySpec{newExtractorSpec(t)})
	require.Len(t, errs, 1)
	assert.Equal(t, SeverityError, errs[0].Severity)
	assert.False(t, HasErrors(nil))
}
