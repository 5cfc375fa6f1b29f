package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/queue"
	"github.com/gestionqr/gestionqr/internal/storage"
)

type qrResponse struct {
	ID      string `json:"id"`
	Payload string `json:"payload"`
	TaskID  string `json:"task_id,omitempty"`
}

type labelResponse struct {
	queue.LabelStatus
	Link string `json:"link,omitempty"`
}

// handleUpload streams the "file" part of a multipart body into the
// attachment service.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tipo, err := pathTipo(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxFileSize+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: expecting multipart form", errBadRequest))
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer part.Close()

	up, err := s.Attachments.Upload(r.Context(), attachments.UploadRequest{
		Tipo:        tipo,
		ID:          chi.URLParam(r, "id"),
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, up)
}

// handleDownload serves links presigned by the in-memory object store.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	mem, ok := s.Blobs.(*storage.MemoryStore)
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	key, expires, signature := q.Get("key"), q.Get("expires"), q.Get("signature")
	if key == "" || expires == "" || signature == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing parameters", errBadRequest))
		return
	}
	if !mem.Verify(key, expires, signature) {
		writeStatusError(w, http.StatusUnauthorized, errors.New("link expired or signature invalid"))
		return
	}
	obj, err := mem.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer obj.Body.Close()
	name := key[strings.LastIndex(key, "/")+1:]
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	if _, err := io.Copy(w, obj.Body); err != nil {
		s.Log.WithError(err).Warn("download interrupted")
	}
}

// handleQRImage renders the label for a record without saving anything.
func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	tipo, err := pathTipo(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.Records.GetByID(r.Context(), id, tipo); err != nil {
		s.writeError(w, r, err)
		return
	}
	size := qr.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 2048 {
			s.writeError(w, r, fmt.Errorf("%w: size must be between 64 and 2048", errBadRequest))
			return
		}
		size = n
	}
	png, err := qr.RenderPNG(s.QR.Payload(id, tipo, requestOrigin(r)), size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleSaveQR builds the payload for a record and stores it. With label=1 a
// printable label is rendered in the background.
func (s *Server) handleSaveQR(w http.ResponseWriter, r *http.Request) {
	tipo, err := pathTipo(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	wantLabel := r.URL.Query().Get("label") == "1"
	if wantLabel && s.Labels == nil {
		s.writeError(w, r, errQueueDisabled)
		return
	}
	origin := requestOrigin(r)
	payload := s.QR.Payload(id, tipo, origin)
	if err := s.Records.SaveQRPayload(r.Context(), tipo, id, payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := qrResponse{ID: id, Payload: payload}
	if wantLabel {
		taskID, err := s.Labels.EnqueueLabel(r.Context(), queue.LabelPayload{Tipo: tipo, ID: id, Origin: origin})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.TaskID = taskID
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleLabelStatus resolves a label task id into its state and, once the
// worker stored the PNG, a download link for it.
func (s *Server) handleLabelStatus(w http.ResponseWriter, r *http.Request) {
	if s.Labels == nil {
		s.writeError(w, r, errQueueDisabled)
		return
	}
	st, err := s.Labels.LabelStatus(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := labelResponse{LabelStatus: st}
	if st.Key != "" {
		if resp.Link, err = s.Attachments.Link(r.Context(), st.Key); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// requestOrigin is the origin the browser used: the Origin header when sent,
// otherwise scheme and host of the request.
func requestOrigin(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get("Origin")); o != "" && o != "null" {
		return o
	}
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing file part", errBadRequest)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
