package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/trellis/internal/domain"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/trials"
	testingpkg "github.com/aristath/trellis/internal/testing"
)

func newArchiveService(t *testing.T) (*Service, *LocalFS, *trials.Repository, *events.Bus) {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "results")
	t.Cleanup(cleanup)

	repo := trials.NewRepository(db, zerolog.Nop())
	store, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)

	bus := events.NewBus()
	svc := NewService(store, db, repo, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	return svc, store, repo, bus
}

func seedRun(t *testing.T, repo *trials.Repository, id string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.CreateRun(ctx, domain.RunRecord{
		ID:        id,
		Config:    testingpkg.NewExperimentFixture(),
		Status:    domain.RunStatusRunning,
		StartedAt: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	}))
	require.NoError(t, repo.SaveTrial(ctx, id, testingpkg.NewCompletedTrialFixture(1)))
	require.NoError(t, repo.SaveTrial(ctx, id, testingpkg.NewCompletedTrialFixture(2)))
	require.NoError(t, repo.FinishRun(ctx, id, domain.RunStatusFinished, 2, 0, ""))
}

func TestArchiveUploadsSnapshotAndExports(t *testing.T) {
	svc, store, repo, bus := newArchiveService(t)
	seedRun(t, repo, "run-1")

	var uploaded []*events.ArchiveUploadedData
	bus.Subscribe(events.ArchiveUploaded, func(e *events.Event) {
		uploaded = append(uploaded, e.GetTypedData().(*events.ArchiveUploadedData))
	})

	ctx := context.Background()
	result, err := svc.Archive(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Runs)
	assert.Greater(t, result.Bytes, int64(0))
	base := "archives/" + result.Stamp
	assert.Equal(t, []string{
		base + "/results.db.gz",
		base + "/runs/run-1.csv",
		base + "/manifest.json",
	}, result.Keys)

	// The snapshot decompresses to a SQLite database.
	raw, err := store.Read(ctx, base+"/results.db.gz")
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	snapshot, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(snapshot, []byte("SQLite format 3\x00")))

	// The CSV export covers both trials.
	exported, err := store.Read(ctx, base+"/runs/run-1.csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(exported)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "seed", rows[0][0])

	// The manifest checks out against the stored objects.
	data, err := store.Read(ctx, base+"/manifest.json")
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, 1, manifest.Runs)
	require.Len(t, manifest.Objects, 2)
	for _, obj := range manifest.Objects {
		stored, err := store.Read(ctx, obj.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(len(stored)), obj.SizeBytes)
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(stored)), obj.Checksum)
	}

	require.Len(t, uploaded, 1)
	assert.Equal(t, result.Keys, uploaded[0].Keys)
	assert.Equal(t, result.Bytes, uploaded[0].Bytes)
	assert.Equal(t, 1, uploaded[0].Runs)
}

func TestArchiveWithNoRuns(t *testing.T) {
	svc, store, _, _ := newArchiveService(t)

	result, err := svc.Archive(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Runs)
	require.Len(t, result.Keys, 2)

	exists, err := store.Exists(context.Background(), "archives/"+result.Stamp+"/manifest.json")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListArchivesNewestFirst(t *testing.T) {
	svc, store, _, _ := newArchiveService(t)
	ctx := context.Background()

	for _, stamp := range []string{"2020-01-01-000000", "2020-01-03-000000", "2020-01-02-000000"} {
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/manifest.json", []byte("{}")))
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/results.db.gz", []byte("x")))
	}
	require.NoError(t, store.Write(ctx, "archives/not-a-timestamp/manifest.json", []byte("{}")))

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 3)
	assert.Equal(t, "2020-01-03-000000", archives[0].Name)
	assert.Equal(t, "2020-01-02-000000", archives[1].Name)
	assert.Equal(t, "2020-01-01-000000", archives[2].Name)
	assert.Equal(t, 2, archives[0].Objects)
	assert.Greater(t, archives[0].AgeHours, int64(0))
}

func TestRotateKeepsMinimumArchives(t *testing.T) {
	svc, store, _, _ := newArchiveService(t)
	ctx := context.Background()

	for _, stamp := range []string{"2020-01-01-000000", "2020-01-02-000000", "2020-01-03-000000"} {
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/manifest.json", []byte("{}")))
	}

	require.NoError(t, svc.Rotate(ctx, 30))

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	assert.Len(t, archives, 3)
}

func TestRotateDeletesExpiredArchives(t *testing.T) {
	svc, store, _, _ := newArchiveService(t)
	ctx := context.Background()

	stamps := []string{
		"2020-01-01-000000", "2020-01-02-000000", "2020-01-03-000000",
		"2020-01-04-000000", "2020-01-05-000000",
	}
	for _, stamp := range stamps {
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/manifest.json", []byte("{}")))
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/results.db.gz", []byte("x")))
	}

	require.NoError(t, svc.Rotate(ctx, 30))

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 3)
	assert.Equal(t, "2020-01-05-000000", archives[0].Name)
	assert.Equal(t, "2020-01-03-000000", archives[2].Name)

	exists, err := store.Exists(ctx, "archives/2020-01-01-000000/manifest.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRotateZeroRetentionKeepsEverything(t *testing.T) {
	svc, store, _, _ := newArchiveService(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		stamp := fmt.Sprintf("2020-01-0%d-000000", i)
		require.NoError(t, store.Write(ctx, "archives/"+stamp+"/manifest.json", []byte("{}")))
	}

	require.NoError(t, svc.Rotate(ctx, 0))

	archives, err := svc.ListArchives(ctx)
	require.NoError(t, err)
	assert.Len(t, archives, 5)
}
