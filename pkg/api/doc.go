// Package api serves a read-only HTTP view of a plugin session.
//
// # Routes
//
//	GET  /api/v1/session                          session id, namespace, roots, effects
//	GET  /api/v1/specs                            registered capability specs
//	GET  /api/v1/specs/{package}/classes          ?registry=full|plugin
//	GET  /api/v1/specs/{package}/classes/{name}   one class with its patch lineage
//	GET  /api/v1/specs/{package}/modules          modules loaded for the spec
//	GET  /api/v1/directories                      expanded roots, ?package= adds locations
//	GET  /api/v1/diagnostics                      ?kind= and ?spec= filters
//	POST /api/v1/reload                           reload every spec (needs WithReloader)
//	GET  /health/live, /health/ready
//	GET  /metrics                                 (needs WithMetrics)
//
// Readiness reports unhealthy until the session has completed LoadAll, and
// degraded while diagnostics are recorded.
//
// # Usage
//
//	srv := api.NewServer(session,
//		api.WithReloader(reloader),
//		api.WithMetrics(metrics, registry),
//		api.WithLogger(log),
//	)
//	httpServer := srv.HTTPServer(":8080", 10*time.Second, 30*time.Second)
//	go httpServer.ListenAndServe()
package api
