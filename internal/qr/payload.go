// Package qr builds, renders and parses the deep links encoded in record QR
// labels. The link shape {origin}/detalle/{id}?t={tipo} is shared by label
// generation and scanning.
package qr

import (
	"net/url"
	"strings"

	"github.com/gestionqr/gestionqr/internal/model"
)

// FallbackOrigin is used when neither a configured nor a runtime origin is
// available.
const FallbackOrigin = "https://gestion-qr.vercel.app"

// BuildPayload returns {origin}/detalle/{id}?t={tipo}. Trailing slashes on
// origin are dropped, id is used as-is and tipo is query-escaped. Any tipo
// other than canerias is written as hormigones.
func BuildPayload(origin, id string, tipo model.Tipo) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	t := model.TipoHormigones
	if tipo == model.TipoCanerias {
		t = model.TipoCanerias
	}
	return origin + "/detalle/" + id + "?t=" + url.QueryEscape(string(t))
}

// Builder resolves the origin for payloads.
type Builder struct {
	// BaseURL is the configured public application URL, if any.
	BaseURL string
}

// Origin picks the configured base URL, then the runtime origin (typically
// the origin of the request that asked for the label), then FallbackOrigin.
func (b Builder) Origin(runtimeOrigin string) string {
	for _, candidate := range []string{b.BaseURL, runtimeOrigin} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return FallbackOrigin
}

// Payload builds the deep link for a record.
func (b Builder) Payload(id string, tipo model.Tipo, runtimeOrigin string) string {
	return BuildPayload(b.Origin(runtimeOrigin), id, tipo)
}
