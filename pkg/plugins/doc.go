// Package plugins discovers, loads and composes third-party capability classes.
//
// # Overview
//
// A host declares one CapabilitySpec per pluggable kind (for example
// "extractor" classes ending in "IE"). Third-party modules dropped under the
// plugin namespace of any configured search root are enumerated, executed and
// harvested into the spec's registries without the host being rebuilt.
//
// # Components
//
// Prober: decides whether one search root (directory or zip archive) contributes
// to a dotted package path and returns a Locator for it.
//
// Resolver: merges Prober results across every search root, in order, into the
// "virtual package" for a capability.
//
// Loader: enumerates direct child modules of each location, skips excluded
// names, executes modules and harvests classes.
//
// Override resolution: a class whose base is a registered class, built-in or
// plugin, is composed onto that entry, extending its lineage name
// ("generic+override"). Every pass rebuilds from the pre-plugin registry, so a
// reload agrees with a fresh load.
//
// Session: holds every piece of mutable state (roots, specs, registries,
// module records, effects and diagnostics) so independent sessions never see
// each other.
//
// # Module format
//
// Modules are declarative documents in YAML, HCL or CUE:
//
//	exports: [NormalPluginIE]
//	effects:
//	  normal_loaded: true
//	classes:
//	  - name: NormalPluginIE
//	    attributes:
//	      REPLACED: false
//	  - name: OverrideGenericIE
//	    extends: GenericIE
//	    plugin_name: override
//	    attributes:
//	      TEST_FIELD: override
//
// # Usage Example
//
//	full := plugins.NewRegistry("extractors")
//	_ = full.Register(plugins.NewClass("GenericIE", "generic", nil))
//
//	session := plugins.NewSession(plugins.WithSearchRoots("/opt/plugins", plugins.Sentinel))
//	spec := &plugins.CapabilitySpec{
//		PackagePath:    "extractor",
//		RequiredSuffix: "IE",
//		FullRegistry:   full,
//		PluginRegistry: plugins.NewRegistry("plugin-extractors"),
//	}
//	if err := session.RegisterSpec(spec); err != nil {
//		return err
//	}
//	if err := session.LoadAll(ctx); err != nil {
//		log.WithError(err).Warn("some plugin specs failed to load")
//	}
package plugins
