package ingress

import "testing"

// TestRouterHostMatching tests host pattern matching
func TestRouterHostMatching(t *testing.T) {
	r := &Router{}

	tests := []struct {
		name     string
		pattern  string
		host     string
		expected bool
	}{
		{
			name:     "exact match",
			pattern:  "example.com",
			host:     "example.com",
			expected: true,
		},
		{
			name:     "exact match with port",
			pattern:  "example.com",
			host:     "example.com:8080",
			expected: true,
		},
		{
			name:     "exact mismatch",
			pattern:  "example.com",
			host:     "other.com",
			expected: false,
		},
		{
			name:     "wildcard match subdomain",
			pattern:  "*.example.com",
			host:     "api.example.com",
			expected: true,
		},
		{
			name:     "wildcard match nested subdomain",
			pattern:  "*.example.com",
			host:     "api.v1.example.com",
			expected: true,
		},
		{
			name:     "wildcard no match root",
			pattern:  "*.example.com",
			host:     "example.com",
			expected: false,
		},
		{
			name:     "wildcard no match different domain",
			pattern:  "*.example.com",
			host:     "other.com",
			expected: false,
		},
		{
			name:     "empty pattern matches all",
			pattern:  "",
			host:     "any-host.com",
			expected: true,
		},
		{
			name:     "case sensitive match",
			pattern:  "Example.com",
			host:     "example.com",
			expected: false,
		},
		{
			name:     "IPv4 address",
			pattern:  "192.168.1.1",
			host:     "192.168.1.1",
			expected: true,
		},
		{
			name:     "localhost",
			pattern:  "localhost",
			host:     "localhost",
			expected: true,
		},
		{
			name:     "localhost with port",
			pattern:  "localhost",
			host:     "localhost:8080",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.matchHost(tt.pattern, tt.host)
			if result != tt.expected {
				t.Errorf("matchHost(%q, %q) = %v, want %v", tt.pattern, tt.host, result, tt.expected)
			}
		})
	}
}

// TestRouterPathMatching tests path matching logic
func TestRouterPathMatching(t *testing.T) {
	r := &Router{}

	tests := []struct {
		name        string
		route       *Route
		requestPath string
		expected    bool
	}{
		{
			name:        "prefix match root",
			route:       &Route{Path: "/", PathType: PathTypePrefix},
			requestPath: "/anything",
			expected:    true,
		},
		{
			name:        "prefix match specific path",
			route:       &Route{Path: "/api", PathType: PathTypePrefix},
			requestPath: "/api/users",
			expected:    true,
		},
		{
			name:        "prefix no match",
			route:       &Route{Path: "/api", PathType: PathTypePrefix},
			requestPath: "/web",
			expected:    false,
		},
		{
			name:        "prefix match exact",
			route:       &Route{Path: "/api", PathType: PathTypePrefix},
			requestPath: "/api",
			expected:    true,
		},
		{
			name:        "exact match",
			route:       &Route{Path: "/api/users", PathType: PathTypeExact},
			requestPath: "/api/users",
			expected:    true,
		},
		{
			name:        "exact no match with subpath",
			route:       &Route{Path: "/api/users", PathType: PathTypeExact},
			requestPath: "/api/users/123",
			expected:    false,
		},
		{
			name:        "exact no match different path",
			route:       &Route{Path: "/api/users", PathType: PathTypeExact},
			requestPath: "/api/posts",
			expected:    false,
		},
		{
			name:        "no pathType defaults to Prefix",
			route:       &Route{Path: "/api", PathType: ""},
			requestPath: "/api/users",
			expected:    true,
		},
		{
			name:        "empty path pattern",
			route:       &Route{Path: "", PathType: PathTypePrefix},
			requestPath: "/anything",
			expected:    true,
		},
		{
			name:        "trailing slash in pattern",
			route:       &Route{Path: "/api/", PathType: PathTypePrefix},
			requestPath: "/api/users",
			expected:    true,
		},
		{
			name:        "no trailing slash in request",
			route:       &Route{Path: "/api", PathType: PathTypePrefix},
			requestPath: "/api",
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.matchPath(tt.route, tt.requestPath)
			if result != tt.expected {
				t.Errorf("matchPath(%v, %q) = %v, want %v", tt.route.Path, tt.requestPath, result, tt.expected)
			}
		})
	}
}

// TestRouterRoute tests full routing across multiple VM routes
func TestRouterRoute(t *testing.T) {
	routes := []*Route{
		{Host: "api.example.com", Path: "/v1", PathType: PathTypePrefix, VMID: "vm-api-v1"},
		{Host: "api.example.com", Path: "/v2", PathType: PathTypePrefix, VMID: "vm-api-v2"},
		{Host: "example.com", Path: "/", PathType: PathTypePrefix, VMID: "vm-web"},
	}

	router := NewRouter(routes)

	tests := []struct {
		name     string
		host     string
		path     string
		wantVMID string
	}{
		{name: "route to api-v1", host: "api.example.com", path: "/v1/users", wantVMID: "vm-api-v1"},
		{name: "route to api-v2", host: "api.example.com", path: "/v2/posts", wantVMID: "vm-api-v2"},
		{name: "route to web", host: "example.com", path: "/", wantVMID: "vm-web"},
		{name: "no match - wrong host", host: "other.com", path: "/", wantVMID: ""},
		{name: "no match - wrong path", host: "api.example.com", path: "/v3/data", wantVMID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Route(tt.host, tt.path)
			if result != tt.wantVMID {
				t.Errorf("Route(%q, %q) = %q, want %q", tt.host, tt.path, result, tt.wantVMID)
			}
		})
	}
}

// TestRouterLongestPrefixMatch tests that longest prefix wins
func TestRouterLongestPrefixMatch(t *testing.T) {
	routes := []*Route{
		{Host: "example.com", Path: "/", PathType: PathTypePrefix, VMID: "root"},
		{Host: "example.com", Path: "/api", PathType: PathTypePrefix, VMID: "api"},
		{Host: "example.com", Path: "/api/admin", PathType: PathTypePrefix, VMID: "admin"},
	}

	router := NewRouter(routes)

	tests := []struct {
		name     string
		path     string
		wantVMID string
	}{
		{name: "match root", path: "/home", wantVMID: "root"},
		{name: "match /api", path: "/api/users", wantVMID: "api"},
		{name: "match /api/admin (longest)", path: "/api/admin/settings", wantVMID: "admin"},
		{name: "match /api/admin exactly", path: "/api/admin", wantVMID: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Route("example.com", tt.path)
			if result != tt.wantVMID {
				t.Errorf("Route() = %q, want %q", result, tt.wantVMID)
			}
		})
	}
}

// TestRouterEmptyRoutes tests router with no routes
func TestRouterEmptyRoutes(t *testing.T) {
	router := NewRouter([]*Route{})

	result := router.Route("any-host.com", "/any-path")
	if result != "" {
		t.Errorf("Route() with empty routes should return \"\", got %q", result)
	}
}

// TestRouterWildcardHost tests wildcard host matching
func TestRouterWildcardHost(t *testing.T) {
	routes := []*Route{
		{Host: "*.apps.example.com", Path: "/", PathType: PathTypePrefix, VMID: "app-proxy"},
	}

	router := NewRouter(routes)

	tests := []struct {
		name    string
		host    string
		wantHit bool
	}{
		{name: "match subdomain", host: "myapp.apps.example.com", wantHit: true},
		{name: "match another subdomain", host: "test.apps.example.com", wantHit: true},
		{name: "no match root domain", host: "apps.example.com", wantHit: false},
		{name: "no match different domain", host: "example.com", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := router.Route(tt.host, "/")
			if tt.wantHit && result == "" {
				t.Errorf("Route(%q) expected match, got none", tt.host)
			}
			if !tt.wantHit && result != "" {
				t.Errorf("Route(%q) expected no match, got %q", tt.host, result)
			}
		})
	}
}

// TestSessionRoutes verifies the /vnc and /console prefix routes built per VM.
func TestSessionRoutes(t *testing.T) {
	router := NewRouter(SessionRoutes([]string{"vm-1", "vm-2"}))

	if got := router.Route("", "/vnc/vm-1/websockify"); got != "vm-1" {
		t.Errorf("expected vm-1, got %q", got)
	}
	if got := router.Route("", "/console/vm-2"); got != "vm-2" {
		t.Errorf("expected vm-2, got %q", got)
	}
	if got := router.Route("", "/vnc/unknown"); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}
