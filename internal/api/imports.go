package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/model"
)

// importMemory is how much of the multipart body is kept in memory before
// spilling to a temp file.
const importMemory = 8 << 20

// handleImport accepts a multipart form with the workbook in "file" and the
// tipo, layout and dry_run fields (form or query).
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(importMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: expecting multipart form", errBadRequest))
		return
	}
	defer r.MultipartForm.RemoveAll()

	dryRun := false
	if raw := r.FormValue("dry_run"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: dry_run must be a boolean", errBadRequest))
			return
		}
		dryRun = v
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file part", errBadRequest))
		return
	}
	defer file.Close()

	report, err := s.Importer.Import(r.Context(), ingest.Request{
		Tipo:     model.ParseTipo(r.FormValue("tipo")),
		Layout:   ingest.Layout(r.FormValue("layout")),
		FileName: header.Filename,
		DryRun:   dryRun,
	}, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
