package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/trajlab/internal/db"
	"github.com/banshee-data/trajlab/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer hosts the lab's HTTP surface: the JSON API, a status page,
// chart endpoints and the debug handlers.
type WebServer struct {
	address   string
	server    *http.Server
	db        *db.DB
	units     string
	api       http.Handler
	startTime time.Time
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	DB      *db.DB
	Units   string
	// API is mounted under /api/. Handlers registered on it keep their
	// /api path prefix.
	API http.Handler
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		db:        config.DB,
		units:     config.Units,
		api:       config.API,
		startTime: time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/charts/scene", ws.handleSceneChart)
	mux.HandleFunc("/charts/run", ws.handleRunChart)
	mux.HandleFunc("/charts/dashboard", ws.handleDashboard)

	if ws.api != nil {
		mux.Handle("/api/", ws.api)
	}
	if ws.db != nil {
		ws.db.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "trajlab", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	sceneCount := 0
	stats := &db.RunStats{}
	dbPath := "none"
	if ws.db != nil {
		dbPath = ws.db.Path()
		if n, err := ws.db.CountScenes(); err == nil {
			sceneCount = n
		}
		if s, err := ws.db.GetRunStats(); err == nil {
			stats = s
		}
	}

	// Load and parse the HTML template from embedded filesystem
	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Template data
	data := struct {
		Version     string
		GitSHA      string
		HTTPAddress string
		Units       string
		Uptime      string
		DBPath      string
		SceneCount  int
		Stats       *db.RunStats
	}{
		Version:     version.Version,
		GitSHA:      version.GitSHA,
		HTTPAddress: ws.address,
		Units:       ws.units,
		Uptime:      time.Since(ws.startTime).Round(time.Second).String(),
		DBPath:      dbPath,
		SceneCount:  sceneCount,
		Stats:       stats,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
