package handler

import (
	"net/http"
	"strings"

	"github.com/mmeshcher/octa-payouts/internal/storage"
)

// documentAccess пропускает к скану персонал и владельца документа.
// Чужим пользователям отвечает 404.
func (h *Handler) documentAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.principal(w, r)
		if !ok {
			return
		}
		if !p.Role.IsStaff() {
			owner, ok := storage.KYCOwner(strings.TrimPrefix(r.URL.Path, h.documentsPrefix))
			if !ok || owner != p.ID {
				writeJSON(w, http.StatusNotFound, envelope{Error: "NotFound", Message: "document not found"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
