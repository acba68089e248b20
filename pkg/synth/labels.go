package synth

import (
	"fmt"
	"strings"
)

// desktopFamily identifies one of the three recognized base-image
// families for reverse-proxy label purposes.
type desktopFamily struct {
	port   int
	scheme string // "http" or "https"
	auth   bool   // inject a basic-auth header middleware
}

var (
	familyKasmVNC     = desktopFamily{port: 6901, scheme: "https", auth: true}
	familyLinuxServer = desktopFamily{port: 3000, scheme: "http", auth: false}
	familyDefault     = desktopFamily{port: 6901, scheme: "https", auth: false}
)

// detectDesktopFamily classifies a base image reference into one of the
// three recognized families. Any desktop image not matching a known
// vendor naming convention falls back to familyDefault — ok is always
// true because every desktop image gets labeled with some family.
func detectDesktopFamily(baseImage string) (desktopFamily, bool) {
	img := strings.ToLower(baseImage)
	switch {
	case strings.Contains(img, "kasmweb") || strings.Contains(img, "kasmvnc"):
		return familyKasmVNC, true
	case strings.Contains(img, "linuxserver"):
		return familyLinuxServer, true
	default:
		return familyDefault, true
	}
}

// desktopLabels renders the bit-exact Traefik label set for a VM: an
// HTTP router, an HTTPS router, a shared service, a path-strip
// middleware, and (when the family requires it) a basic-auth header
// middleware. Router rule is PathPrefix("/vnc/{vm_id}") at priority 100
// with the same prefix stripped before the backend sees the request.
func desktopLabels(vmID string, fam desktopFamily) map[string]string {
	router := fmt.Sprintf("vnc-%s", vmID)
	service := router
	strip := fmt.Sprintf("strip-%s", vmID)
	rule := fmt.Sprintf(`PathPrefix("/vnc/%s")`, vmID)
	prefix := fmt.Sprintf("/vnc/%s", vmID)

	labels := map[string]string{
		"traefik.enable": "true",

		fmt.Sprintf("traefik.http.routers.%s-http.rule", router):     rule,
		fmt.Sprintf("traefik.http.routers.%s-http.priority", router): "100",
		fmt.Sprintf("traefik.http.routers.%s-http.service", router):  service,

		fmt.Sprintf("traefik.http.routers.%s-https.rule", router):     rule,
		fmt.Sprintf("traefik.http.routers.%s-https.priority", router): "100",
		fmt.Sprintf("traefik.http.routers.%s-https.service", router):  service,
		fmt.Sprintf("traefik.http.routers.%s-https.tls", router):      "true",

		fmt.Sprintf("traefik.http.middlewares.%s.stripprefix.prefixes", strip): prefix,

		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", service): fmt.Sprintf("%d", fam.port),
	}

	if fam.scheme == "https" {
		labels[fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.scheme", service)] = "https"
		labels[fmt.Sprintf("traefik.http.services.%s.loadbalancer.serverstransport", service)] = "insecure-transport@file"
	}

	middlewares := strip
	if fam.auth {
		authMw := fmt.Sprintf("auth-%s", vmID)
		labels[fmt.Sprintf("traefik.http.middlewares.%s.basicauth.users", authMw)] = ""
		middlewares = middlewares + "," + authMw
	}
	labels[fmt.Sprintf("traefik.http.routers.%s-http.middlewares", router)] = middlewares
	labels[fmt.Sprintf("traefik.http.routers.%s-https.middlewares", router)] = middlewares

	return labels
}
