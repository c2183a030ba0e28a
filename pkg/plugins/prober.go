package plugins

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultArchiveCacheSize bounds the number of archive listings kept in memory
	DefaultArchiveCacheSize = 128

	// DefaultArchiveCacheTTL bounds how long an archive listing is trusted
	DefaultArchiveCacheTTL = 10 * time.Minute
)

// LocatorKind tells how a Locator's members are addressed
type LocatorKind string

const (
	LocatorDirectory LocatorKind = "directory"
	LocatorArchive   LocatorKind = "archive"
)

// Locator addresses the contents of one package inside one search root
type Locator struct {
	Kind LocatorKind `json:"kind"`
	Root string      `json:"root"`
	// Path is the package directory, or the archive file for archive locators
	Path string `json:"path"`
	// Prefix is the slash-separated package path inside an archive
	Prefix string `json:"prefix,omitempty"`
}

func (l Locator) String() string {
	if l.Kind == LocatorArchive {
		return l.Path + "!/" + l.Prefix
	}
	return l.Path
}

// archiveIndex is the cached member listing of one archive
type archiveIndex struct {
	dirs  map[string]struct{}
	files map[string]struct{}
}

// Prober decides whether a search root contributes to a package
type Prober struct {
	cache   *lru.LRU[string, *archiveIndex]
	log     logrus.FieldLogger
	metrics *observability.Metrics
}

// NewProber creates a prober with an expiring archive listing cache
func NewProber(size int, ttl time.Duration, log logrus.FieldLogger, metrics *observability.Metrics) *Prober {
	if size <= 0 {
		size = DefaultArchiveCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultArchiveCacheTTL
	}
	if log == nil {
		log = logrus.New()
	}

	return &Prober{
		cache:   lru.NewLRU[string, *archiveIndex](size, nil, ttl),
		log:     log,
		metrics: metrics,
	}
}

// Probe returns the locator for segments under root, if root contributes.
// A stat failure on root is returned as is; a corrupt archive is returned
// wrapped in ErrArchiveUnreadable. Both mean "non-contributing".
func (p *Prober) Probe(root string, segments []string) (Locator, bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Locator{}, false, err
	}

	if info.IsDir() {
		dir := filepath.Join(append([]string{root}, segments...)...)
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			return Locator{}, false, nil
		}
		return Locator{Kind: LocatorDirectory, Root: root, Path: dir}, true, nil
	}

	if !info.Mode().IsRegular() {
		return Locator{}, false, nil
	}

	isZip, err := hasZipSignature(root)
	if err != nil {
		return Locator{}, false, fmt.Errorf("%w: %s: %v", ErrArchiveUnreadable, root, err)
	}
	if !isZip {
		return Locator{}, false, nil
	}

	index, err := p.index(root, info)
	if err != nil {
		return Locator{}, false, fmt.Errorf("%w: %s: %v", ErrArchiveUnreadable, root, err)
	}

	prefix := path.Join(segments...)
	if _, ok := index.dirs[prefix]; !ok {
		return Locator{}, false, nil
	}
	return Locator{Kind: LocatorArchive, Root: root, Path: root, Prefix: prefix}, true, nil
}

// Purge drops every cached archive listing
func (p *Prober) Purge() {
	p.cache.Purge()
}

// entry is one direct child of a located package
type entry struct {
	name  string
	isDir bool
}

// children lists the direct children of a located package
func (p *Prober) children(loc Locator) ([]entry, error) {
	if loc.Kind == LocatorDirectory {
		dirEntries, err := os.ReadDir(loc.Path)
		if err != nil {
			return nil, err
		}
		out := make([]entry, 0, len(dirEntries))
		for _, de := range dirEntries {
			out = append(out, entry{name: de.Name(), isDir: de.IsDir()})
		}
		return out, nil
	}

	index, err := p.indexFor(loc.Path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []entry
	prefix := loc.Prefix + "/"
	for name := range index.files {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		leaf, _, nested := strings.Cut(rest, "/")
		if seen[leaf] {
			continue
		}
		seen[leaf] = true
		out = append(out, entry{name: leaf, isDir: nested})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// exists reports whether rel (slash separated, relative to the package) is a file
func (p *Prober) exists(loc Locator, rel string) bool {
	if loc.Kind == LocatorDirectory {
		fi, err := os.Stat(filepath.Join(loc.Path, filepath.FromSlash(rel)))
		return err == nil && fi.Mode().IsRegular()
	}
	index, err := p.indexFor(loc.Path)
	if err != nil {
		return false
	}
	_, ok := index.files[path.Join(loc.Prefix, rel)]
	return ok
}

// read returns the content of rel; archive handles are closed before returning
func (p *Prober) read(loc Locator, rel string) ([]byte, error) {
	if loc.Kind == LocatorDirectory {
		return os.ReadFile(filepath.Join(loc.Path, filepath.FromSlash(rel)))
	}

	zr, err := zip.OpenReader(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveUnreadable, loc.Path, err)
	}
	defer zr.Close()

	f, err := zr.Open(path.Join(loc.Prefix, rel))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (p *Prober) indexFor(archive string) (*archiveIndex, error) {
	info, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	return p.index(archive, info)
}

func (p *Prober) index(archive string, info fs.FileInfo) (*archiveIndex, error) {
	key := fmt.Sprintf("%s|%d|%d", archive, info.Size(), info.ModTime().UnixNano())
	if index, ok := p.cache.Get(key); ok {
		p.metrics.RecordArchiveCache(true)
		return index, nil
	}
	p.metrics.RecordArchiveCache(false)

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	index := &archiveIndex{
		dirs:  make(map[string]struct{}),
		files: make(map[string]struct{}),
	}
	for _, f := range zr.File {
		name := strings.TrimPrefix(path.Clean(f.Name), "/")
		if strings.HasSuffix(f.Name, "/") {
			index.dirs[name] = struct{}{}
		} else {
			index.files[name] = struct{}{}
		}
		for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			index.dirs[dir] = struct{}{}
		}
	}

	p.cache.Add(key, index)
	p.log.WithFields(logrus.Fields{
		"archive": archive,
		"files":   len(index.files),
	}).Debug("Indexed plugin archive")
	return index, nil
}

var zipSignatures = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"),
	[]byte("PK\x07\x08"),
}

// hasZipSignature recognizes archives by container format, not extension
func hasZipSignature(file string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && n < len(header) {
		return false, nil
	}
	for _, sig := range zipSignatures {
		if bytes.Equal(header, sig) {
			return true, nil
		}
	}
	return false, nil
}
