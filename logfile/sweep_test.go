package logfile

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cfup/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name, content string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

func TestScanSkipsActiveAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "cfup.log", "active", time.Hour)
	writeAged(t, dir, "cfup-old.log", "rotated", time.Hour)
	writeAged(t, dir, "cfup-older.log.gz", "archive", time.Hour)
	writeAged(t, dir, "notes.txt", "junk", time.Hour)

	entries, err := Scan(context.Background(), dir, "cfup.log")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = e.Compressed
	}
	assert.Equal(t, map[string]bool{"cfup-old.log": false, "cfup-older.log.gz": true}, names)
}

func TestSweepCompressesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	policy := Policy{
		CompressAfter: common.Duration(time.Hour),
		DeleteAfter:   common.Duration(time.Hour),
		KeepRaw:       1,
		KeepArchives:  1,
	}

	writeAged(t, dir, "cfup.log", "active file", 3*time.Hour)
	writeAged(t, dir, "cfup-r1.log", "oldest rotated", 3*time.Hour)
	writeAged(t, dir, "cfup-r2.log", "newest rotated", 2*time.Hour)
	writeAged(t, dir, "cfup-a1.log.gz", "oldest archive", 3*time.Hour)
	writeAged(t, dir, "cfup-a2.log.gz", "newest archive", 2*time.Hour)

	Sweep(context.Background(), dir, "cfup.log", policy)

	// Oldest rotated log is now an archive; the newest stays raw.
	assert.NoFileExists(t, filepath.Join(dir, "cfup-r1.log"))
	assert.FileExists(t, filepath.Join(dir, "cfup-r1.log.gz"))
	assert.FileExists(t, filepath.Join(dir, "cfup-r2.log"))

	// Oldest archive is gone, newest stays, active untouched.
	assert.NoFileExists(t, filepath.Join(dir, "cfup-a1.log.gz"))
	assert.FileExists(t, filepath.Join(dir, "cfup-a2.log.gz"))
	assert.FileExists(t, filepath.Join(dir, "cfup.log"))

	// The new archive round-trips to the original content.
	f, err := os.Open(filepath.Join(dir, "cfup-r1.log.gz"))
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "oldest rotated", string(data))
}

func TestSweepMissingDirIsBestEffort(t *testing.T) {
	assert.NotPanics(t, func() {
		Sweep(context.Background(), filepath.Join(t.TempDir(), "absent"), "cfup.log", DefaultPolicy())
	})
}
