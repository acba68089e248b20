package ingress

import "strings"

// PathType controls how a Route's Path is matched against a request path.
type PathType string

const (
	PathTypePrefix PathType = "Prefix"
	PathTypeExact  PathType = "Exact"
)

// Route binds a host+path pattern to the VM whose session endpoint should
// handle the request. Routes are built in memory (see SessionRoutes), not
// persisted entities.
type Route struct {
	Host     string // empty matches any host
	Path     string
	PathType PathType
	VMID     string
}

// Router resolves console/VNC request paths to a backing VM using
// longest-prefix-wins matching. pkg/session and pkg/synth do not use it.
type Router struct {
	routes []*Route
}

// NewRouter builds a router over the given routes.
func NewRouter(routes []*Route) *Router {
	return &Router{routes: routes}
}

// Route returns the VM ID matching host+path, or "" if none match.
// When multiple routes match, the one with the longest Path wins.
func (r *Router) Route(host, path string) string {
	var best *Route
	for _, route := range r.routes {
		if !r.matchHost(route.Host, host) {
			continue
		}
		if !r.matchPath(route, path) {
			continue
		}
		if best == nil || len(route.Path) > len(best.Path) {
			best = route
		}
	}
	if best == nil {
		return ""
	}
	return best.VMID
}

// matchHost reports whether host satisfies pattern. An empty pattern
// matches any host. A "*.example.com" pattern matches any subdomain, but
// not example.com itself. Host port suffixes are stripped before matching.
func (r *Router) matchHost(pattern, host string) bool {
	if pattern == "" {
		return true
	}

	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(host, suffix) && host != suffix[1:]
	}

	return pattern == host
}

// matchPath reports whether requestPath satisfies route's Path under its
// PathType.
func (r *Router) matchPath(route *Route, requestPath string) bool {
	switch route.PathType {
	case PathTypeExact:
		return requestPath == route.Path
	default: // PathTypePrefix
		if route.Path == "" || route.Path == "/" {
			return true
		}
		if !strings.HasPrefix(requestPath, route.Path) {
			return false
		}
		rest := strings.TrimPrefix(requestPath, route.Path)
		return rest == "" || strings.HasPrefix(rest, "/") || strings.HasSuffix(route.Path, "/")
	}
}

// UpdateRoutes replaces the router's route table, used when the live VM
// set changes (VM created/removed, range torn down).
func (r *Router) UpdateRoutes(routes []*Route) {
	r.routes = routes
}

// SessionRoutes builds a route table resolving /vnc/{vm_id} and
// /console/{vm_id} prefixes to a VM ID. Since the VM ID is already
// embedded in the path, host/path pattern matching collapses to a literal
// prefix per VM.
func SessionRoutes(vmIDs []string) []*Route {
	routes := make([]*Route, 0, len(vmIDs)*2)
	for _, id := range vmIDs {
		routes = append(routes,
			&Route{Path: "/vnc/" + id, PathType: PathTypePrefix, VMID: id},
			&Route{Path: "/console/" + id, PathType: PathTypePrefix, VMID: id},
		)
	}
	return routes
}
