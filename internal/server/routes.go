package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, test page, room listing and,
// when a static directory is configured, static files under /static/.
func SetupRoutes(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(h))
	mux.HandleFunc("/test", TestPageHandler)
	mux.HandleFunc("/rooms", RoomsHandler(h))
	if dir := h.cfg.StaticDir; dir != "" {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}
	return mux
}
