// Package api exposes the record, import, attachment and QR operations over
// HTTP. Reads need a valid token; writes need the CALIDAD role.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/auth"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/queue"
	"github.com/gestionqr/gestionqr/internal/records"
	"github.com/gestionqr/gestionqr/internal/storage"
)

// Deps are the services the handlers call.
type Deps struct {
	Records     *records.Service
	Importer    *ingest.Importer
	Attachments *attachments.Service
	Blobs       storage.Store
	// Labels is optional; without it label requests answer 503.
	Labels      queue.Enqueuer
	Verifier    *auth.Verifier
	QR          qr.Builder
	MaxFileSize int64
	Log         logrus.FieldLogger
}

// Server exposes HTTP endpoints for records and their documentation.
type Server struct {
	Deps
}

// New constructs a Server.
func New(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(loggingMiddleware(s.Log))
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/download", s.handleDownload)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.Verifier.Authenticate(writeStatusError))
		r.Get("/detalle/{id}", s.handleDetalle)
		r.Get("/scan", s.handleScan)
		r.Get("/hormigones", s.handleSearchHormigones)
		r.Get("/canerias", s.handleSearchCanerias)
		r.Get("/counts", s.handleCounts)
		r.Get("/{tipo}/{id}/qr.png", s.handleQRImage)
		r.Get("/labels/{taskID}", s.handleLabelStatus)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireWriter(writeStatusError))
			r.Post("/imports", s.handleImport)
			r.Post("/{tipo}/{id}/archivo", s.handleUpload)
			r.Post("/{tipo}/{id}/qr", s.handleSaveQR)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
