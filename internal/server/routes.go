package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatus)
	mux.HandleFunc("/api/health", s.app.StatusHandler.GetHealth)
	mux.HandleFunc("/api/version", s.app.StatusHandler.GetVersion)

	// API routes - Pipeline (upload, cancel, run journal)
	mux.HandleFunc("/api/pipeline/upload", s.app.PipelineHandler.Upload)
	mux.HandleFunc("/api/pipeline/cancel", s.app.PipelineHandler.Cancel)
	mux.HandleFunc("/api/pipeline/run", s.app.PipelineHandler.CurrentRun)
	mux.HandleFunc("/api/pipeline/runs", s.app.PipelineHandler.ListRuns)
	mux.HandleFunc("/api/pipeline/runs/", s.app.PipelineHandler.GetRun) // GET /{id}

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.ListDocuments)
	mux.HandleFunc("/api/documents/stats", s.app.DocumentHandler.GetStats)
	mux.HandleFunc("/api/documents/classified", s.app.DocumentHandler.GetClassified)
	mux.HandleFunc("/api/documents/analyze", s.app.DocumentHandler.Analyze)

	// API routes - Vehicle linking
	mux.HandleFunc("/api/vehicles/link", s.app.VehicleHandler.LinkBatch)
	mux.HandleFunc("/api/vehicles/unlink", s.app.VehicleHandler.UnlinkBatch)
	mux.HandleFunc("/api/vehicles/create-and-link", s.app.VehicleHandler.CreateAndLink)
	mux.HandleFunc("/api/vehicles/link-one", s.app.VehicleHandler.Link)
	mux.HandleFunc("/api/vehicles/unlink-one", s.app.VehicleHandler.Unlink)

	return mux
}
