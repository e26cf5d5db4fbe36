// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes bound to hub.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ChatPageHandler)
	mux.HandleFunc("/healthz", HealthHandler(hub))
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	return mux
}
