package plugins

import (
	"os"
	"path/filepath"
	"sort"
)

const (
	appDirName       = "plugweave"
	pluginsDirName   = "plugins"
	standaloneFolder = "plugweave-plugins"
)

// DefaultDirectories returns the host's default plugin roots: every entry
// (directory or archive) inside the well-known plugin containers.
func DefaultDirectories() []string {
	var roots []string
	for _, container := range defaultContainers() {
		entries, err := os.ReadDir(container)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			roots = append(roots, filepath.Join(container, name))
		}
	}
	return dedupePaths(roots)
}

// defaultContainers lists the folders whose children are default roots
func defaultContainers() []string {
	var configDirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDirs = append(configDirs, xdg)
	} else if home, err := os.UserHomeDir(); err == nil {
		configDirs = append(configDirs, filepath.Join(home, ".config"))
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		configDirs = append(configDirs, appData)
	}

	var containers []string
	for _, dir := range configDirs {
		containers = append(containers, filepath.Join(dir, appDirName, pluginsDirName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		containers = append(containers, filepath.Join(home, "."+appDirName, pluginsDirName))
	}
	containers = append(containers, filepath.Join("/etc", appDirName, pluginsDirName))

	if exe, err := os.Executable(); err == nil {
		containers = append(containers, filepath.Join(filepath.Dir(exe), standaloneFolder))
	}
	for _, dir := range configDirs {
		containers = append(containers, filepath.Join(dir, standaloneFolder))
	}
	containers = append(containers, filepath.Join("/etc", standaloneFolder))

	return dedupePaths(containers)
}

// expandRoots replaces every Sentinel with defaults() and removes duplicates
func expandRoots(roots []string, defaults func() []string) []string {
	var out []string
	var expanded []string
	for _, root := range roots {
		if root == Sentinel {
			if expanded == nil {
				expanded = defaults()
			}
			out = append(out, expanded...)
			continue
		}
		out = append(out, root)
	}
	return dedupePaths(out)
}

// dedupePaths keeps the first occurrence of every cleaned path
func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
