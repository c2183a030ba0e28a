package api

import (
	"time"

	"github.com/platinummonkey/plugweave/pkg/hotreload"
	"github.com/platinummonkey/plugweave/pkg/plugins"
)

// SessionInfo describes the session behind the API
type SessionInfo struct {
	ID          string         `json:"id"`
	Namespace   string         `json:"namespace"`
	SearchRoots []string       `json:"search_roots"`
	AllLoaded   bool           `json:"all_loaded"`
	Effects     map[string]any `json:"effects,omitempty"`
}

// SpecSummary describes one registered capability spec
type SpecSummary struct {
	Package        string `json:"package"`
	RequiredSuffix string `json:"required_suffix"`
	Classes        int    `json:"classes"`
	Plugins        int    `json:"plugins"`
	Modules        int    `json:"modules"`
}

// ClassList is the body of GET /api/v1/specs/{package}/classes
type ClassList struct {
	Package  string              `json:"package"`
	Registry string              `json:"registry"`
	Classes  []plugins.ClassInfo `json:"classes"`
}

// DirectoryList is the body of GET /api/v1/directories
type DirectoryList struct {
	SearchRoots []string          `json:"search_roots"`
	Directories []string          `json:"directories"`
	Locations   []plugins.Locator `json:"locations,omitempty"`
}

// DiagnosticList is the body of GET /api/v1/diagnostics
type DiagnosticList struct {
	Count       int                  `json:"count"`
	Diagnostics []plugins.Diagnostic `json:"diagnostics"`
}

// ReloadResponse is the body of POST /api/v1/reload
type ReloadResponse struct {
	hotreload.Result
	Shared   bool          `json:"shared"`
	Duration time.Duration `json:"duration_ns"`
}
