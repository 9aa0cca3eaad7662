package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/trellis/internal/database"
	"github.com/aristath/trellis/internal/events"
	"github.com/aristath/trellis/internal/modules/statistics"
	"github.com/aristath/trellis/internal/modules/trials"
)

// stampFormat names one archive; every object of an archive lives under
// archives/<stamp>/.
const stampFormat = "2006-01-02-150405"

// minArchivesToKeep bounds rotation: the newest archives survive regardless
// of age.
const minArchivesToKeep = 3

// Manifest describes the objects uploaded by one archive invocation.
type Manifest struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Runs        int             `json:"runs"`
	Objects     []ManifestEntry `json:"objects"`
}

// ManifestEntry records size and checksum for one uploaded object.
type ManifestEntry struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Result summarizes one archive invocation.
type Result struct {
	Stamp string   `json:"stamp"`
	Keys  []string `json:"keys"`
	Bytes int64    `json:"bytes"`
	Runs  int      `json:"runs"`
}

// Info describes one stored archive.
type Info struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	AgeHours  int64     `json:"age_hours"`
	Objects   int       `json:"objects"`
}

// Service archives the results database and per-run CSV exports to cold
// storage.
type Service struct {
	storage Storage
	db      *database.DB
	repo    *trials.Repository
	events  *events.Manager
	log     zerolog.Logger
}

// NewService creates an archive service. The events manager may be nil when
// no subscriber exists.
func NewService(storage Storage, db *database.DB, repo *trials.Repository, em *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		storage: storage,
		db:      db,
		repo:    repo,
		events:  em,
		log:     log.With().Str("service", "archive").Logger(),
	}
}

// Archive snapshots the results database (VACUUM INTO, gzipped), exports one
// CSV per stored run, and uploads everything with a checksummed manifest
// under a timestamped key prefix.
func (s *Service) Archive(ctx context.Context) (*Result, error) {
	s.log.Info().Msg("Starting archive")
	startTime := time.Now()

	staging, err := os.MkdirTemp("", "trellis-archive-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	snapshotPath := filepath.Join(staging, "results.db")
	// VACUUM INTO writes an atomic copy without WAL files.
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return nil, fmt.Errorf("failed to snapshot results db: %w", err)
	}
	if err := verifySnapshot(snapshotPath); err != nil {
		return nil, fmt.Errorf("snapshot verification failed: %w", err)
	}

	snapshot, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(snapshot); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	stamp := time.Now().UTC().Format(stampFormat)
	base := "archives/" + stamp
	result := &Result{Stamp: stamp}
	manifest := Manifest{GeneratedAt: time.Now().UTC()}

	upload := func(key string, data []byte) error {
		if err := s.storage.Write(ctx, key, data); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		manifest.Objects = append(manifest.Objects, ManifestEntry{
			Key:       key,
			SizeBytes: int64(len(data)),
			Checksum:  fmt.Sprintf("sha256:%x", sha256.Sum256(data)),
		})
		result.Keys = append(result.Keys, key)
		result.Bytes += int64(len(data))
		return nil
	}

	if err := upload(base+"/results.db.gz", compressed.Bytes()); err != nil {
		return nil, err
	}

	runs, err := s.repo.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	for _, run := range runs {
		records, err := s.repo.ListTrials(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list trials for run %s: %w", run.ID, err)
		}
		var export bytes.Buffer
		if err := statistics.WriteCSV(&export, records); err != nil {
			return nil, fmt.Errorf("failed to export run %s: %w", run.ID, err)
		}
		if err := upload(base+"/runs/"+run.ID+".csv", export.Bytes()); err != nil {
			return nil, err
		}
	}
	manifest.Runs = len(runs)
	result.Runs = len(runs)

	// The manifest goes last so it only describes objects that made it up.
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestKey := base + "/manifest.json"
	if err := s.storage.Write(ctx, manifestKey, encoded); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", manifestKey, err)
	}
	result.Keys = append(result.Keys, manifestKey)
	result.Bytes += int64(len(encoded))

	if s.events != nil {
		s.events.EmitTyped(events.ArchiveUploaded, "archive", &events.ArchiveUploadedData{
			Keys:  result.Keys,
			Bytes: result.Bytes,
			Runs:  result.Runs,
		})
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("stamp", stamp).
		Int("runs", result.Runs).
		Int("objects", len(result.Keys)).
		Int64("bytes", result.Bytes).
		Msg("Archive completed")

	return result, nil
}

// ListArchives returns the stored archives, newest first. Keys that do not
// parse as archive stamps are skipped.
func (s *Service) ListArchives(ctx context.Context) ([]Info, error) {
	paths, err := s.storage.List(ctx, "archives/")
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	counts := make(map[string]int)
	for _, p := range paths {
		name, _, ok := strings.Cut(strings.TrimPrefix(p, "archives/"), "/")
		if !ok {
			continue
		}
		counts[name]++
	}

	now := time.Now()
	infos := make([]Info, 0, len(counts))
	for name, objects := range counts {
		timestamp, err := time.Parse(stampFormat, name)
		if err != nil {
			s.log.Warn().Str("name", name).Msg("Failed to parse archive timestamp")
			continue
		}
		infos = append(infos, Info{
			Name:      name,
			Timestamp: timestamp,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
			Objects:   objects,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// Rotate deletes archives older than the retention period, always keeping
// the newest minArchivesToKeep. Retention 0 keeps everything.
func (s *Service) Rotate(ctx context.Context, retentionDays int) error {
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting archive rotation")

	archives, err := s.ListArchives(ctx)
	if err != nil {
		return err
	}
	if len(archives) <= minArchivesToKeep {
		s.log.Info().Int("count", len(archives)).Msg("Too few archives to rotate")
		return nil
	}

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := 0
	for i, info := range archives {
		if i < minArchivesToKeep || retentionDays == 0 {
			continue
		}
		if !info.Timestamp.Before(cutoff) {
			continue
		}

		objects, err := s.storage.List(ctx, "archives/"+info.Name+"/")
		if err != nil {
			s.log.Error().Err(err).Str("archive", info.Name).Msg("Failed to list archive objects")
			continue
		}
		failed := false
		for _, key := range objects {
			if err := s.storage.Delete(ctx, key); err != nil {
				s.log.Error().Err(err).Str("key", key).Msg("Failed to delete archive object")
				failed = true
			}
		}
		if failed {
			continue
		}
		deleted++
		s.log.Info().
			Str("archive", info.Name).
			Time("timestamp", info.Timestamp).
			Msg("Deleted old archive")
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")
	return nil
}

// verifySnapshot opens the copied database and runs an integrity check, so a
// corrupt snapshot is never uploaded.
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
