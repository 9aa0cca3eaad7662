package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/modules/archive"
	"github.com/aristath/trellis/internal/modules/trials"
	testingpkg "github.com/aristath/trellis/internal/testing"
)

func TestArchiveEndpointUploadsSnapshot(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "results")
	t.Cleanup(cleanup)
	repo := trials.NewRepository(db, zerolog.Nop())

	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	service := archive.NewService(store, db, repo, nil, zerolog.Nop())

	handlers := NewArchiveHandlers(service, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/archive", nil)
	rec := httptest.NewRecorder()
	handlers.HandleArchive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result archive.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Stamp)
	assert.Zero(t, result.Runs)
	assert.Len(t, result.Keys, 2, "snapshot and manifest; no stored runs to export")

	exists, err := store.Exists(req.Context(), "archives/"+result.Stamp+"/manifest.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
