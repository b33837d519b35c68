// Package history persists generated audio as timestamped WAV files in a
// flat directory, with a SQLite index of generation metadata. Files are
// created on generation and never deleted automatically.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/go-audio/wav"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tts-studio/internal/core"
)

// historyTimeFormat produces the {kind}_{YYYYMMDD_HHMMSS}.wav naming scheme.
const historyTimeFormat = "20060102_150405"

const (
	filePermissions = 0o600
	wavExtension    = ".wav"
)

// Static errors.
var (
	ErrAudioEmpty      = errors.New("audio data cannot be empty")
	ErrInvalidKind     = errors.New("kind must be tts or vc")
	ErrInvalidFileName = errors.New("invalid history file name")
	ErrFileNotFound    = errors.New("history file not found")
)

// fileNamePattern matches the names this store produces. FilePath rejects
// anything else so callers cannot reach outside the history directory.
var fileNamePattern = regexp.MustCompile(`^(tts|vc)_\d{8}_\d{6}(_\d+)?\.wav$`)

// generation is the storage model for one history entry.
type generation struct {
	ID            uint   `gorm:"primaryKey"`
	Kind          string `gorm:"size:8;index"`
	FileName      string `gorm:"uniqueIndex"`
	SizeBytes     int64
	AudioSeconds  float64
	EngineSeconds float64
	Exaggeration  float64
	CFGWeight     float64
	Temperature   float64
	Seed          int
	CreatedAt     time.Time
}

// Store implements core.HistoryStore on a directory plus a SQLite index.
type Store struct {
	db  *gorm.DB
	dir string
	log *logger.Logger

	// nameMu serializes file-name allocation so two saves within the same
	// second get distinct suffixes.
	nameMu sync.Mutex
}

// Open opens (or creates) the history index at dbPath and binds the store
// to the given audio directory.
func Open(dir, dbPath string, log *logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.AutoMigrate(&generation{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{
		db:     db,
		dir:    dir,
		log:    log,
		nameMu: sync.Mutex{},
	}, nil
}

// Save writes the audio to a new timestamped file and records its metadata.
// The duration is probed from the WAV header; a file the decoder cannot
// read is still saved, with a zero duration.
func (s *Store) Save(
	ctx context.Context,
	kind core.Kind,
	audio []byte,
	meta core.Record,
) (core.Record, error) {
	if kind != core.KindTTS && kind != core.KindVC {
		return core.Record{}, fmt.Errorf("%w: got %q", ErrInvalidKind, kind)
	}

	if len(audio) == 0 {
		return core.Record{}, ErrAudioEmpty
	}

	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	name := s.allocateName(kind, time.Now())

	path := filepath.Join(s.dir, name)

	err := os.WriteFile(path, audio, filePermissions)
	if err != nil {
		return core.Record{}, fmt.Errorf("failed to write audio file: %w", err)
	}

	seconds, probeErr := probeDurationSeconds(audio)
	if probeErr != nil {
		s.log.Warn("Could not probe WAV duration for %s: %v", name, probeErr)
	}

	model := generation{
		ID:            0,
		Kind:          string(kind),
		FileName:      name,
		SizeBytes:     int64(len(audio)),
		AudioSeconds:  seconds,
		EngineSeconds: meta.EngineSeconds,
		Exaggeration:  meta.Exaggeration,
		CFGWeight:     meta.CFGWeight,
		Temperature:   meta.Temperature,
		Seed:          meta.Seed,
		CreatedAt:     time.Now(),
	}

	err = s.db.WithContext(ctx).Create(&model).Error
	if err != nil {
		return core.Record{}, fmt.Errorf("failed to index history entry: %w", err)
	}

	s.log.Info("Saved %s audio: %s (%d bytes)", kind, name, len(audio))

	return fromModel(&model), nil
}

// List returns up to limit records, most recent first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]core.Record, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []generation

	err := query.Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	records := make([]core.Record, len(models))
	for i := range models {
		records[i] = fromModel(&models[i])
	}

	return records, nil
}

// Stats reports the number of history entries and their total size.
func (s *Store) Stats(ctx context.Context) (core.HistoryStats, error) {
	var stats struct {
		Files      int
		TotalBytes int64
	}

	err := s.db.WithContext(ctx).
		Model(&generation{}).
		Select("COUNT(*) AS files, COALESCE(SUM(size_bytes), 0) AS total_bytes").
		Scan(&stats).Error
	if err != nil {
		return core.HistoryStats{}, fmt.Errorf("failed to compute history stats: %w", err)
	}

	return core.HistoryStats{
		Files:      stats.Files,
		TotalBytes: stats.TotalBytes,
	}, nil
}

// Clear removes all indexed audio files and their records, returning the
// number of entries removed. Files already gone on disk are not an error.
func (s *Store) Clear(ctx context.Context) (int, error) {
	var models []generation

	err := s.db.WithContext(ctx).Find(&models).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list history for clearing: %w", err)
	}

	for i := range models {
		path := filepath.Join(s.dir, models[i].FileName)

		removeErr := os.Remove(path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return 0, fmt.Errorf(
				"failed to remove %s: %w", models[i].FileName, removeErr)
		}
	}

	err = s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&generation{}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to clear history index: %w", err)
	}

	s.log.Info("Cleared audio history: %d entries removed", len(models))

	return len(models), nil
}

// FilePath resolves a history file name to its on-disk path. Names that do
// not match the store's naming scheme are rejected.
func (s *Store) FilePath(name string) (string, error) {
	if !fileNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	path := filepath.Join(s.dir, name)

	_, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	return path, nil
}

// allocateName picks the first unused {kind}_{timestamp}[_{n}].wav name.
// Callers must hold nameMu.
func (s *Store) allocateName(kind core.Kind, now time.Time) string {
	base := fmt.Sprintf("%s_%s", kind, now.Format(historyTimeFormat))
	name := base + wavExtension

	for counter := 1; s.fileExists(name); counter++ {
		name = fmt.Sprintf("%s_%d%s", base, counter, wavExtension)
	}

	return name
}

func (s *Store) fileExists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))

	return err == nil
}

// probeDurationSeconds reads the WAV header to compute the audio duration.
func probeDurationSeconds(audio []byte) (float64, error) {
	decoder := wav.NewDecoder(bytes.NewReader(audio))

	duration, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to decode WAV header: %w", err)
	}

	return duration.Seconds(), nil
}

func fromModel(model *generation) core.Record {
	return core.Record{
		ID:            model.ID,
		Kind:          core.Kind(model.Kind),
		FileName:      model.FileName,
		SizeBytes:     model.SizeBytes,
		AudioSeconds:  model.AudioSeconds,
		EngineSeconds: model.EngineSeconds,
		Exaggeration:  model.Exaggeration,
		CFGWeight:     model.CFGWeight,
		Temperature:   model.Temperature,
		Seed:          model.Seed,
		CreatedAt:     model.CreatedAt,
	}
}
