package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.corsMiddleware(s.handleWebSocket))
	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))

	// Map interaction
	mux.HandleFunc("/handle_map_interaction", s.corsMiddleware(s.handleMapInteraction))
	mux.HandleFunc("/handle_vpu_interaction", s.corsMiddleware(s.handleVPUInteraction))

	// Geometry data
	mux.HandleFunc("/get_geojson_from_wbids", s.corsMiddleware(s.handleGeojsonFromWbids))
	mux.HandleFunc("/get_upstream_geojson_from_wbids", s.corsMiddleware(s.handleUpstreamGeojson))
	mux.HandleFunc("/get_flowlines_from_wbids", s.corsMiddleware(s.handleFlowlines))
	mux.HandleFunc("/get_vpu", s.corsMiddleware(s.handleVPU))
	mux.HandleFunc("/get_wbids_from_vpu", s.corsMiddleware(s.handleWbidsFromVPU))
	mux.HandleFunc("/get_map_data", s.corsMiddleware(s.handleMapData))

	// Derived products
	mux.HandleFunc("/subset", s.corsMiddleware(s.handleSubset))
	mux.HandleFunc("/subset_to_file", s.corsMiddleware(s.handleSubset))
	mux.HandleFunc("/forcings", s.corsMiddleware(s.handleForcings))
	mux.HandleFunc("/realization", s.corsMiddleware(s.handleRealization))
	mux.HandleFunc("/jobs", s.corsMiddleware(s.handleJobs))

	// Display settings
	mux.HandleFunc("/settings", s.corsMiddleware(s.handleSettings))
}

// corsMiddleware adds CORS headers to HTTP responses using configured
// allowed origins. The same origin check guards WebSocket upgrades.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// checkOrigin validates a request origin against the configured allow list.
// Prefix matching admits any port on an allowed host.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// No origin header: direct clients, curl, tests.
	if origin == "" {
		return true
	}

	allowed := s.cfg.Server.AllowedOrigins
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}
	for _, a := range allowed {
		if strings.HasPrefix(origin, a) {
			return true
		}
	}
	return false
}
