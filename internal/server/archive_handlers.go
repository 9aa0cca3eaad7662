package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/modules/archive"
)

// ArchiveHandlers triggers cold-storage archiving over HTTP.
type ArchiveHandlers struct {
	archiver *archive.Service
	log      zerolog.Logger
}

// NewArchiveHandlers creates archive handlers. A nil service disables the
// endpoint with a 503 response.
func NewArchiveHandlers(archiver *archive.Service, log zerolog.Logger) *ArchiveHandlers {
	return &ArchiveHandlers{
		archiver: archiver,
		log:      log.With().Str("handler", "archive").Logger(),
	}
}

// HandleArchive handles POST /api/archive. The archive runs synchronously
// and the response reports what was uploaded.
func (h *ArchiveHandlers) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archiving is not configured")
		return
	}

	result, err := h.archiver.Archive(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Archive failed")
		writeError(w, http.StatusInternalServerError, "archive failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
