package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/plugweave/pkg/hotreload"
	"github.com/platinummonkey/plugweave/pkg/httputil"
	"github.com/platinummonkey/plugweave/pkg/observability"
	"github.com/platinummonkey/plugweave/pkg/plugins"
)

// Registry selectors for the classes endpoint
const (
	RegistryFull   = "full"
	RegistryPlugin = "plugin"
)

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, SessionInfo{
		ID:          s.session.ID(),
		Namespace:   s.session.Namespace(),
		SearchRoots: s.session.SearchRoots(),
		AllLoaded:   s.session.AllLoaded(),
		Effects:     s.session.Effects(),
	})
}

func (s *Server) listSpecs(w http.ResponseWriter, r *http.Request) {
	specs := s.session.Specs()
	out := make([]SpecSummary, 0, len(specs))
	for _, spec := range specs {
		out = append(out, SpecSummary{
			Package:        spec.PackagePath,
			RequiredSuffix: spec.RequiredSuffix,
			Classes:        spec.FullRegistry.Len(),
			Plugins:        spec.PluginRegistry.Len(),
			Modules:        len(s.session.Modules(spec.PackagePath)),
		})
	}
	httputil.WriteSuccess(w, out)
}

// specFromRequest resolves {package} or writes a 404
func (s *Server) specFromRequest(w http.ResponseWriter, r *http.Request) (*plugins.CapabilitySpec, bool) {
	pkg := mux.Vars(r)["package"]
	spec, ok := s.session.Spec(pkg)
	if !ok {
		httputil.WriteNotFound(w, r, fmt.Sprintf("unknown spec %q", pkg))
		return nil, false
	}
	return spec, true
}

func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.specFromRequest(w, r)
	if !ok {
		return
	}

	which := r.URL.Query().Get("registry")
	var registry *plugins.Registry
	switch which {
	case "", RegistryFull:
		which, registry = RegistryFull, spec.FullRegistry
	case RegistryPlugin:
		registry = spec.PluginRegistry
	default:
		httputil.WriteBadRequest(w, r, fmt.Sprintf("registry must be %q or %q", RegistryFull, RegistryPlugin))
		return
	}

	classes := registry.List()
	infos := make([]plugins.ClassInfo, 0, len(classes))
	for _, c := range classes {
		infos = append(infos, c.Info())
	}
	httputil.WriteSuccess(w, ClassList{
		Package:  spec.PackagePath,
		Registry: which,
		Classes:  infos,
	})
}

func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.specFromRequest(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["name"]
	class, ok := spec.FullRegistry.Get(name)
	if !ok {
		httputil.WriteNotFound(w, r, fmt.Sprintf("class %q not registered for %s", name, spec.PackagePath))
		return
	}
	httputil.WriteSuccess(w, class.Info())
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.specFromRequest(w, r)
	if !ok {
		return
	}
	modules := s.session.Modules(spec.PackagePath)
	if modules == nil {
		modules = []plugins.LoadedModule{}
	}
	httputil.WriteSuccess(w, modules)
}

func (s *Server) listDirectories(w http.ResponseWriter, r *http.Request) {
	resp := DirectoryList{
		SearchRoots: s.session.SearchRoots(),
		Directories: s.session.Directories(),
	}
	if pkg := r.URL.Query().Get("package"); pkg != "" {
		if _, ok := s.session.Spec(pkg); !ok {
			httputil.WriteNotFound(w, r, fmt.Sprintf("unknown spec %q", pkg))
			return
		}
		resp.Locations = s.session.Locations(pkg)
	}
	httputil.WriteSuccess(w, resp)
}

func (s *Server) listDiagnostics(w http.ResponseWriter, r *http.Request) {
	kind := plugins.DiagnosticKind(r.URL.Query().Get("kind"))
	spec := r.URL.Query().Get("spec")

	out := []plugins.Diagnostic{}
	for _, d := range s.session.Diagnostics() {
		if kind != "" && d.Kind != kind {
			continue
		}
		if spec != "" && d.Spec != spec {
			continue
		}
		out = append(out, d)
	}
	httputil.WriteSuccess(w, DiagnosticList{Count: len(out), Diagnostics: out})
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		httputil.WriteServiceUnavailable(w, r, "reloading is not enabled")
		return
	}

	ctx := observability.WithLogger(r.Context(), observability.FromContext(r.Context(), s.log))
	res, shared, err := s.reloader.Reload(ctx, hotreload.TriggerAPI)
	if err != nil {
		httputil.WriteDetailedError(w, r, http.StatusInternalServerError, err.Error(), map[string]string{
			"trigger": res.Trigger,
		})
		return
	}
	httputil.WriteSuccess(w, ReloadResponse{
		Result:   res,
		Shared:   shared,
		Duration: res.Finished.Sub(res.Started),
	})
}
