package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/records"
)

var errBadRequest = errors.New("bad request")

type detalleResponse struct {
	*model.Record
	ArchivoLink string `json:"archivo_link,omitempty"`
}

type scanResponse struct {
	ID    string     `json:"id"`
	Tipo  model.Tipo `json:"tipo,omitempty"`
	Route string     `json:"route"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// handleDetalle returns a record and, when it has an attachment, a link the
// browser can open right away.
func (s *Server) handleDetalle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.Records.GetByID(r.Context(), id, model.ParseTipo(r.URL.Query().Get("t")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := detalleResponse{Record: rec}
	if ref := rec.ArchivoURL(); ref != "" {
		link, err := s.Attachments.Link(r.Context(), ref)
		if err != nil && !errors.Is(err, attachments.ErrNoAttachment) {
			s.Log.WithError(err).WithField("id", id).Warn("attachment link unavailable")
		}
		resp.ArchivoLink = link
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	target, ok := qr.ParseScan(r.URL.Query().Get("raw"))
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: empty scan", errBadRequest))
		return
	}
	respondJSON(w, http.StatusOK, scanResponse{ID: target.ID, Tipo: target.Tipo, Route: target.Route()})
}

func (s *Server) handleSearchHormigones(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := s.Records.SearchHormigones(r.Context(), records.HormigonQuery{
		Titulo:     q.Get("titulo"),
		NroInterno: q.Get("nro_interno"),
		Limit:      limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[model.Hormigon]{Items: nonNil(items), Count: len(items)})
}

func (s *Server) handleSearchCanerias(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := s.Records.SearchCanerias(r.Context(), records.CaneriaQuery{
		NroLinea: q.Get("nro_linea"),
		NroISO:   q.Get("nro_iso"),
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse[model.Caneria]{Items: nonNil(items), Count: len(items)})
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Records.Counts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: limit must be a number", errBadRequest)
	}
	return n, nil
}

// pathTipo reads the {tipo} URL parameter.
func pathTipo(r *http.Request) (model.Tipo, error) {
	tipo := model.ParseTipo(chi.URLParam(r, "tipo"))
	if !tipo.Valid() {
		return "", records.ErrInvalidTipo
	}
	return tipo, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
