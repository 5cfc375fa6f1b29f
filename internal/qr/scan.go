package qr

import (
	"net/url"
	"strings"

	"github.com/gestionqr/gestionqr/internal/model"
)

// Target is where a scanned code leads.
type Target struct {
	ID   string     `json:"id"`
	Tipo model.Tipo `json:"tipo,omitempty"`
}

// Route returns the detail path for the target, keeping the type hint when
// known.
func (t Target) Route() string {
	route := "/detalle/" + url.PathEscape(t.ID)
	if t.Tipo.Valid() {
		route += "?t=" + url.QueryEscape(string(t.Tipo))
	}
	return route
}

// ParseScan interprets raw scanner output. A URL (absolute, or a bare path)
// whose path starts with /detalle/ yields the id from the path and the tipo
// from the t parameter. Anything else is taken as a bare record id for older
// labels that only encoded the id. ok is false for empty input.
func ParseScan(raw string) (Target, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Target{}, false
	}
	if u, err := url.Parse(trimmed); err == nil && (u.IsAbs() || strings.HasPrefix(trimmed, "/")) {
		if rest, found := strings.CutPrefix(u.Path, "/detalle/"); found {
			id := strings.Trim(rest, "/")
			if id != "" {
				return Target{ID: id, Tipo: model.ParseTipo(u.Query().Get("t"))}, true
			}
		}
	}
	return Target{ID: trimmed}, true
}
