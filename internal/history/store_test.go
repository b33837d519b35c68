// Package history_test tests the audio history store.
package history_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tts-studio/internal/core"
	"tts-studio/internal/history"
)

var historyNamePattern = regexp.MustCompile(`^(tts|vc)_\d{8}_\d{6}(_\d+)?\.wav$`)

// wavBytes builds a minimal PCM WAV file: mono, 16-bit, 8 kHz, carrying
// dataBytes bytes of silence. 16000 data bytes is one second of audio.
func wavBytes(t *testing.T, dataBytes int) []byte {
	t.Helper()

	const (
		sampleRate    = 8000
		bitsPerSample = 16
		numChannels   = 1
	)

	var buf bytes.Buffer

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(36+dataBytes)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(numChannels)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(byteRate)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(blockAlign)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample)))

	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(dataBytes)))
	buf.Write(make([]byte, dataBytes))

	return buf.Bytes()
}

func newTestStore(t *testing.T) (*history.Store, string) {
	t.Helper()

	dir := t.TempDir()

	log, err := logger.New(t.TempDir(), "history-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	store, err := history.Open(dir, filepath.Join(dir, "test.db"), log)
	require.NoError(t, err)

	return store, dir
}

func TestSaveWritesTimestampedFile(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	audio := wavBytes(t, 16000)

	record, err := store.Save(context.Background(), core.KindTTS, audio, core.Record{
		EngineSeconds: 2.5,
		Exaggeration:  0.5,
		CFGWeight:     0.5,
		Temperature:   0.8,
		Seed:          42,
	})
	require.NoError(t, err)

	assert.Regexp(t, historyNamePattern, record.FileName)
	assert.True(t, len(record.FileName) > 4 && record.FileName[:4] == "tts_")
	assert.Equal(t, int64(len(audio)), record.SizeBytes)
	assert.InEpsilon(t, 1.0, record.AudioSeconds, 0.01)
	assert.InEpsilon(t, 2.5, record.EngineSeconds, 0.001)
	assert.Equal(t, 42, record.Seed)

	saved, err := os.ReadFile(filepath.Join(dir, record.FileName))
	require.NoError(t, err)
	assert.Equal(t, audio, saved)
}

func TestSaveDistinctNamesWithinSameSecond(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	audio := wavBytes(t, 800)

	seen := make(map[string]struct{})

	for range 3 {
		record, err := store.Save(context.Background(), core.KindVC, audio, core.Record{})
		require.NoError(t, err)

		_, dup := seen[record.FileName]
		assert.False(t, dup, "duplicate name %s", record.FileName)
		seen[record.FileName] = struct{}{}

		assert.Regexp(t, historyNamePattern, record.FileName)
	}
}

func TestSaveToleratesUndecodableAudio(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	record, err := store.Save(
		context.Background(), core.KindTTS, []byte("not a wav file"), core.Record{})
	require.NoError(t, err)

	assert.Zero(t, record.AudioSeconds)
	assert.Equal(t, int64(len("not a wav file")), record.SizeBytes)
}

func TestSaveRejectsEmptyAudio(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.Save(context.Background(), core.KindTTS, nil, core.Record{})
	require.ErrorIs(t, err, history.ErrAudioEmpty)
}

func TestSaveRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.Save(
		context.Background(), core.Kind("song"), wavBytes(t, 800), core.Record{})
	require.ErrorIs(t, err, history.ErrInvalidKind)
}

func TestListReturnsMostRecentFirst(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	audio := wavBytes(t, 800)

	var names []string

	for range 3 {
		record, err := store.Save(context.Background(), core.KindTTS, audio, core.Record{})
		require.NoError(t, err)

		names = append(names, record.FileName)
	}

	records, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Saves in the same second share a timestamp; the id tiebreaker keeps
	// newest first.
	assert.Equal(t, names[2], records[0].FileName)
	assert.Equal(t, names[0], records[2].FileName)

	limited, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStats(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	audio := wavBytes(t, 800)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
	assert.Zero(t, stats.TotalBytes)

	for range 2 {
		_, saveErr := store.Save(context.Background(), core.KindTTS, audio, core.Record{})
		require.NoError(t, saveErr)
	}

	stats, err = store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(2*len(audio)), stats.TotalBytes)
}

func TestClearRemovesFilesAndIndex(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	audio := wavBytes(t, 800)

	record, err := store.Save(context.Background(), core.KindTTS, audio, core.Record{})
	require.NoError(t, err)

	removed, err := store.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, record.FileName))
	require.ErrorIs(t, err, os.ErrNotExist)

	records, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClearToleratesAlreadyDeletedFiles(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	record, err := store.Save(
		context.Background(), core.KindTTS, wavBytes(t, 800), core.Record{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, record.FileName)))

	removed, err := store.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestFilePath(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	record, err := store.Save(
		context.Background(), core.KindTTS, wavBytes(t, 800), core.Record{})
	require.NoError(t, err)

	path, err := store.FilePath(record.FileName)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, record.FileName), path)
}

func TestFilePathRejectsForeignNames(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	for _, name := range []string{
		"../../etc/passwd",
		"tts_20240101_120000.mp3",
		"song_20240101_120000.wav",
		"tts_2024_120000.wav",
		"",
	} {
		_, err := store.FilePath(name)
		require.ErrorIs(t, err, history.ErrInvalidFileName, name)
	}
}

func TestFilePathMissingFile(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.FilePath("tts_20240101_120000.wav")
	require.ErrorIs(t, err, history.ErrFileNotFound)
}
