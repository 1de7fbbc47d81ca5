package handlers

import (
	"net/http"

	"github.com/crucial707/inkwell/internal/apperror"
	"github.com/crucial707/inkwell/internal/repo"
)

// AuditHandler serves the post activity log.
type AuditHandler struct {
	Repo *repo.AuditRepo
}

// ListAudit returns recent audit log entries. Query: limit (default 50, max 200), offset (default 0).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, int(^uint(0)>>1))

	entries, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, r, apperror.NewInternal("Server error while fetching activity", err))
		return
	}
	JSON(w, http.StatusOK, entries)
}
