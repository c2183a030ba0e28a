package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var extractorSegments = []string{DefaultNamespace, "extractor"}

func TestProber_Directory(t *testing.T) {
	root := scenarioRoot(t)
	p := NewProber(0, 0, quietLogger(), nil)

	loc, ok, err := p.Probe(root, extractorSegments)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, LocatorDirectory, loc.Kind)
	assert.Equal(t, filepath.Join(root, DefaultNamespace, "extractor"), loc.Path)

	_, ok, err = p.Probe(root, []string{DefaultNamespace, "postprocessor"})
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := p.children(loc)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	data, err := p.read(loc, "normal.yaml")
	require.NoError(t, err)
	assert.Equal(t, normalModule, string(data))
}

func TestProber_Archive(t *testing.T) {
	archive, err := PackArchive(scenarioRoot(t), filepath.Join(t.TempDir(), "bundle.plugin"))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	p := NewProber(4, 0, quietLogger(), metrics)

	loc, ok, err := p.Probe(archive, extractorSegments)
	require.NoError(t, err)
	require.True(t, ok, "archives are recognized by content, not extension")
	assert.Equal(t, LocatorArchive, loc.Kind)
	assert.Equal(t, DefaultNamespace+"/extractor", loc.Prefix)
	assert.Equal(t, archive+"!/"+DefaultNamespace+"/extractor", loc.String())

	entries, err := p.children(loc)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.name)
	}
	assert.Equal(t, []string{"_ignore.yaml", "normal.yaml", "override.yaml", "overridetwo.yaml"}, names)

	assert.True(t, p.exists(loc, "normal.yaml"))
	assert.False(t, p.exists(loc, "missing.yaml"))

	data, err := p.read(loc, "override.yaml")
	require.NoError(t, err)
	assert.Equal(t, overrideModule, string(data))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ArchiveCacheTotal.WithLabelValues("miss")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.ArchiveCacheTotal.WithLabelValues("hit")), 1.0)

	p.Purge()
	_, _, err = p.Probe(archive, extractorSegments)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ArchiveCacheTotal.WithLabelValues("miss")))
}

func TestProber_PackageModules(t *testing.T) {
	root := writeTree(t, t.TempDir(), extractorFiles(map[string]string{
		"pkg/module.hcl":   `class "PkgIE" {}`,
		"pkg/helpers.yaml": "classes: []",
		"notamodule/x.txt": "x",
		"readme.md":        "docs",
		"dotted.name.yaml": "classes: []",
		"plain.cue":        "classes: []",
	}))
	p := NewProber(0, 0, quietLogger(), nil)
	loc, ok, err := p.Probe(root, extractorSegments)
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := p.children(loc)
	require.NoError(t, err)

	var refs []moduleRef
	for _, e := range entries {
		if ref, ok := p.candidate(loc, e); ok {
			refs = append(refs, ref)
		}
	}
	require.Len(t, refs, 2)
	byLeaf := map[string]string{}
	for _, r := range refs {
		byLeaf[r.leaf] = r.member
	}
	assert.Equal(t, "pkg/module.hcl", byLeaf["pkg"])
	assert.Equal(t, "plain.cue", byLeaf["plain"])
}

func TestProber_NonContributingRoots(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("just text"), 0o644))
	tiny := filepath.Join(dir, "tiny")
	require.NoError(t, os.WriteFile(tiny, []byte("P"), 0o644))
	corrupt := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("PK\x03\x04garbage"), 0o644))

	p := NewProber(0, 0, quietLogger(), nil)

	tests := []struct {
		name    string
		root    string
		wantErr error
		anyErr  bool
	}{
		{name: "plain file", root: text},
		{name: "short file", root: tiny},
		{name: "empty directory", root: t.TempDir()},
		{name: "corrupt archive", root: corrupt, wantErr: ErrArchiveUnreadable},
		{name: "missing root", root: filepath.Join(dir, "missing"), anyErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := p.Probe(tt.root, extractorSegments)
			assert.False(t, ok)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolver_MergesRootsInOrder(t *testing.T) {
	d1 := scenarioRoot(t)
	d2 := t.TempDir()
	d3 := writeTree(t, t.TempDir(), extractorFiles(map[string]string{"x.yaml": ""}))
	missing := filepath.Join(t.TempDir(), "gone")

	var reported []Diagnostic
	r := NewResolver(
		NewProber(0, 0, quietLogger(), nil),
		"",
		func() []string { return []string{d1, d2, missing, d3} },
		func(d Diagnostic) { reported = append(reported, d) },
		quietLogger(),
	)

	locs := r.Resolve("extractor")
	require.Len(t, locs, 2)
	assert.Equal(t, d1, locs[0].Root)
	assert.Equal(t, d3, locs[1].Root)
	require.Len(t, reported, 1)
	assert.Equal(t, DiagnosticInvalidRoot, reported[0].Kind)
	assert.Equal(t, missing, reported[0].Location)

	assert.Empty(t, r.Resolve("postprocessor"))
}
