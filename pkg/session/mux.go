package session

import "net/http"

// Handler returns an http.Handler exposing the three session endpoints at
// their fixed paths, ready to mount on cmd/cyroid's top-level mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/console/{vm_id}", s.ConsoleHandler)
	mux.HandleFunc("GET /ws/vnc/{vm_id}", s.VNCHandler)
	mux.HandleFunc("GET /ws/status/{range_id}", s.StatusHandler)
	return mux
}
