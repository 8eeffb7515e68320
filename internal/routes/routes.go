package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"robodash/internal/config"
	"robodash/internal/handlers"
	"robodash/internal/logger"
	"robodash/internal/middleware"
	"robodash/internal/services"
	"robodash/internal/services/ai"
	ws "robodash/internal/services/websocket"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(pipeline *services.Pipeline, hub *ws.HubService, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// API endpoints
	mux.HandleFunc("/api/control", handlers.ControlWebsocketHandler(pipeline, hub, log))
	mux.HandleFunc("/api/scenes", handlers.ScenesHandler(pipeline, log))
	mux.HandleFunc("/video_feed", handlers.VideoFeedHandler(pipeline, ai.DrawDetections, log))

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowLogsHandler(log, "info.log"))
	mux.HandleFunc("/logs/warning", handlers.ShowLogsHandler(log, "warning.log"))
	mux.HandleFunc("/logs/error", handlers.ShowLogsHandler(log, "error.log"))

	mux.HandleFunc("/logs/info/clear", handlers.ClearLogsHandler(log, "info.log"))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearLogsHandler(log, "warning.log"))
	mux.HandleFunc("/logs/error/clear", handlers.ClearLogsHandler(log, "error.log"))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /dashboard -> /static/dashboard.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
