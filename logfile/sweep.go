package logfile

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cfup/log"

	"go.uber.org/zap"
)

// Scan lists rotated log files and archives in dir. The active log file is
// excluded; it belongs to the rotating writer, not the retention sweep.
func Scan(ctx context.Context, dir, active string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range items {
		if item.IsDir() {
			continue
		}

		name := item.Name()
		if name == active {
			continue
		}

		compressed := strings.HasSuffix(name, ".gz")
		if !compressed && !strings.HasSuffix(name, ".log") {
			continue
		}

		info, err := item.Info()
		if err != nil {
			log.S(ctx).Warnw("stat rotated log failed", "file", name, zap.Error(err))
			continue
		}

		entries = append(entries, Entry{
			Name:       name,
			ModTime:    info.ModTime(),
			Compressed: compressed,
		})
	}

	return entries, nil
}

// Apply compresses and deletes the planned files. Each failure is logged and
// skipped; retention never aborts the update flow.
func Apply(ctx context.Context, dir string, actions Actions) {
	for _, name := range actions.Compress {
		path := filepath.Join(dir, name)
		if err := compressFile(path); err != nil {
			log.S(ctx).Warnw("compress rotated log failed", "file", name, zap.Error(err))
			continue
		}
		if err := os.Remove(path); err != nil {
			log.S(ctx).Warnw("remove compressed original failed", "file", name, zap.Error(err))
			continue
		}
		log.S(ctx).Debugw("compressed rotated log", "file", name)
	}

	for _, name := range actions.Delete {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			log.S(ctx).Warnw("delete stale archive failed", "file", name, zap.Error(err))
			continue
		}
		log.S(ctx).Debugw("deleted stale archive", "file", name)
	}
}

// Sweep runs one scan/plan/apply pass over dir. Best-effort: errors are
// logged, never returned.
func Sweep(ctx context.Context, dir, active string, p Policy) {
	ctx = log.With(ctx, log.Stage("retention"))

	entries, err := Scan(ctx, dir, active)
	if err != nil {
		log.S(ctx).Warnw("scan log directory failed", "dir", dir, zap.Error(err))
		return
	}

	actions := Plan(entries, p, time.Now())
	if actions.Empty() {
		log.S(ctx).Debugw("nothing to compress or delete", "files", len(entries))
		return
	}

	log.S(ctx).Infow("applying retention",
		"compress", len(actions.Compress), "delete", len(actions.Delete))
	Apply(ctx, dir, actions)
}

func compressFile(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(out)
	if _, err = io.Copy(gz, in); err != nil {
		return err
	}

	return gz.Close()
}
