package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Service routes
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)   // GET
	mux.HandleFunc("/version", s.app.StatusHandler.VersionHandler) // GET

	// API routes - Scraping
	mux.HandleFunc("/v1/scrape", s.app.ScrapeHandler.ScrapeHandler) // POST - blocking batch

	// API routes - Stored results
	mux.HandleFunc("/v1/results", s.app.ResultsHandler.ListHandler)     // GET ?company=&run_id=&limit=
	mux.HandleFunc("/v1/results/{id}", s.app.ResultsHandler.GetHandler) // GET

	// API routes - Watchlist
	mux.HandleFunc("/v1/watchlist", s.app.StatusHandler.WatchlistHandler)        // GET
	mux.HandleFunc("/v1/watchlist/run", s.app.StatusHandler.RunWatchlistHandler) // POST

	mux.HandleFunc("/", s.notFound)

	return mux
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"ok":false,"error":"not found"}` + "\n"))
}
