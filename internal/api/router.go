package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/canny86/FilaCore/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.accessLog)
	r.Use(s.cors)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/", s.handleIndex)

	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// The stream authenticates with a ticket, since browsers cannot set
		// headers on WebSocket upgrades.
		r.Get("/printers/active/stream", s.handleStream)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/printers", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermPrinterRead)).Get("/", s.handleListPrinters)
				r.With(s.requirePermission(auth.PermPrinterManage)).Post("/", s.handleAddPrinter)
				r.With(s.requirePermission(auth.PermPrinterOperate)).Get("/active/state", s.handleActiveState)

				r.Route("/{serial}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermPrinterManage)).Delete("/", s.handleRemovePrinter)
					r.With(s.requirePermission(auth.PermPrinterManage)).Post("/activate", s.handleActivatePrinter)
				})
			})

			r.Route("/certificates/{name}", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermPrinterRead)).Get("/", s.handleCertificateStatus)
				r.With(s.requirePermission(auth.PermPrinterManage)).Post("/", s.handleCreateCertificate)
			})

			r.Route("/filaments", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermFilamentRead)).Get("/", s.handleListFilaments)
				r.With(s.requirePermission(auth.PermFilamentManage)).Post("/", s.handleSaveFilament)
				r.With(s.requirePermission(auth.PermFilamentManage)).Get("/fcid", s.handleGenerateFCID)
				r.With(s.requirePermission(auth.PermPrinterOperate)).Post("/slot", s.handleSetFilamentSlot)
				r.With(s.requirePermission(auth.PermFilamentManage)).Delete("/{fcid}", s.handleDeleteFilament)
			})

			r.With(s.requirePermission(auth.PermFilamentRead)).Get("/print-profiles", s.handlePrintProfiles)
			r.With(s.requirePermission(auth.PermHistoryRead)).Get("/history", s.handleListHistory)
		})
	})

	return r
}

// handleIndex answers the root path with a plain banner.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte("FilaCore running\n"))
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
