// Package attachments uploads documentation files for a record and turns the
// stored reference back into a downloadable link.
package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gestionqr/gestionqr/internal/model"
	pdfutil "github.com/gestionqr/gestionqr/internal/pdf"
	"github.com/gestionqr/gestionqr/internal/storage"
)

// DefaultLinkTTL is how long a signed download link stays valid.
const DefaultLinkTTL = 30 * time.Minute

var (
	ErrTooLarge     = errors.New("file exceeds the maximum upload size")
	ErrInvalidName  = errors.New("file name is empty")
	ErrInvalidPDF   = errors.New("file is not a readable pdf")
	ErrNoAttachment = errors.New("record has no attached file")
)

// Records is the part of the record layer the service needs.
type Records interface {
	GetByID(ctx context.Context, id string, tipo model.Tipo) (*model.Record, error)
	SaveArchivoURL(ctx context.Context, tipo model.Tipo, id, url string) error
}

// UploadRequest describes one file to attach.
type UploadRequest struct {
	Tipo        model.Tipo
	ID          string
	FileName    string
	ContentType string
	Body        io.Reader
}

// Upload is the outcome of a successful upload.
type Upload struct {
	Bucket     string `json:"bucket"`
	Path       string `json:"path"`
	PublicURL  string `json:"public_url,omitempty"`
	ArchivoURL string `json:"archivo_url"`
	Pages      int    `json:"pages,omitempty"`
}

// Service stores attachments and records their reference.
type Service struct {
	store   storage.Store
	records Records
	maxSize int64
	ttl     time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
}

// NewService constructs a Service. Non-positive ttl selects DefaultLinkTTL.
func NewService(store storage.Store, records Records, maxSize int64, ttl time.Duration, log logrus.FieldLogger) *Service {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &Service{store: store, records: records, maxSize: maxSize, ttl: ttl, now: time.Now, log: log}
}

// ObjectPath returns the storage key for an attachment:
// {tipo}/{id}/{unixMillis}-{fileName}.
func ObjectPath(tipo model.Tipo, id string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%s/%d-%s", tipo, id, at.UnixMilli(), fileName)
}

// Upload validates and stores a file, then saves archivo_url on the record:
// the public URL when the bucket is public, otherwise the storage path.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Upload, error) {
	if !req.Tipo.Valid() {
		return nil, fmt.Errorf("upload: invalid tipo %q", req.Tipo)
	}
	name := baseName(req.FileName)
	if name == "" {
		return nil, ErrInvalidName
	}
	if _, err := s.records.GetByID(ctx, req.ID, req.Tipo); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}
	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	out := &Upload{Bucket: s.store.Bucket()}
	if pdfutil.IsPDF(contentType, name) {
		info, err := pdfutil.Inspect(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
		}
		out.Pages = info.Pages
		contentType = "application/pdf"
	}

	out.Path = ObjectPath(req.Tipo, req.ID, s.now(), name)
	if err := s.store.Put(ctx, out.Path, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType}); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	out.ArchivoURL = out.Path
	if u, ok := s.store.PublicURL(out.Path); ok {
		out.PublicURL = u
		out.ArchivoURL = u
	}
	if err := s.records.SaveArchivoURL(ctx, req.Tipo, req.ID, out.ArchivoURL); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"tipo":  req.Tipo,
		"id":    req.ID,
		"path":  out.Path,
		"bytes": len(data),
	}).Info("attachment stored")
	return out, nil
}

// Link resolves a stored archivo_url into something a browser can open.
// Absolute http(s) URLs are returned unchanged; storage paths get a signed
// URL valid for the configured TTL.
func (s *Service) Link(ctx context.Context, archivoURL string) (string, error) {
	ref := strings.TrimSpace(archivoURL)
	if ref == "" {
		return "", ErrNoAttachment
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref, nil
	}
	u, err := s.store.PresignURL(ctx, ref, s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign attachment link: %w", err)
	}
	return u, nil
}

// baseName strips any client-side directory from an uploaded name.
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	b := path.Base(name)
	if b == "." || b == "/" {
		return ""
	}
	return b
}
