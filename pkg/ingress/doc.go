/*
Package ingress resolves path-based session routing for a cyroid
installation. There is no cluster of nodes or service replicas to load
balance across here. Router is a standalone longest-prefix matcher that
resolves /vnc/{vm_id} and /console/{vm_id} paths (built by SessionRoutes)
to a VM ID; pkg/session and pkg/synth do not call it (pkg/session routes
its endpoints with an http.ServeMux in mux.go).

Middleware applies rate limiting and IP access control ahead of a session
handshake; cmd/cyroid wraps the session handler with it. It has no
ingress-specific state of its own.

	router := ingress.NewRouter(ingress.SessionRoutes(liveVMIDs))
	vmID := router.Route(r.Host, r.URL.Path)
*/
package ingress
