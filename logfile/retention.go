package logfile

import (
	"sort"
	"time"

	"cfup/common"
)

// Policy controls how long rotated logs stay uncompressed and how long
// compressed archives are retained.
type Policy struct {
	CompressAfter common.Duration `toml:"compress_after" json:"compress_after" yaml:"compress_after"`
	DeleteAfter   common.Duration `toml:"delete_after" json:"delete_after" yaml:"delete_after"`
	KeepRaw       int             `toml:"keep_raw" json:"keep_raw" yaml:"keep_raw"`
	KeepArchives  int             `toml:"keep_archives" json:"keep_archives" yaml:"keep_archives"`
}

// DefaultPolicy compresses week-old rotated logs keeping the 3 newest raw,
// and drops archives past four weeks keeping the 4 newest.
func DefaultPolicy() Policy {
	return Policy{
		CompressAfter: common.Duration(7 * 24 * time.Hour),
		DeleteAfter:   common.Duration(28 * 24 * time.Hour),
		KeepRaw:       3,
		KeepArchives:  4,
	}
}

// Entry is the metadata of one rotated log file or archive.
type Entry struct {
	Name       string
	ModTime    time.Time
	Compressed bool
}

// Actions is the decision set produced by Plan. Names are relative to the
// log directory.
type Actions struct {
	Compress []string
	Delete   []string
}

func (a Actions) Empty() bool {
	return len(a.Compress) == 0 && len(a.Delete) == 0
}

// Plan decides which rotated logs to compress and which archives to delete.
// It never touches the filesystem; Apply carries out the effects.
//
// Rotated logs older than CompressAfter are compressed, except the KeepRaw
// newest which always stay uncompressed. Archives older than DeleteAfter are
// deleted, except the KeepArchives newest.
func Plan(entries []Entry, p Policy, now time.Time) Actions {
	var raw, archived []Entry
	for _, e := range entries {
		if e.Compressed {
			archived = append(archived, e)
		} else {
			raw = append(raw, e)
		}
	}

	byAge := func(s []Entry) {
		sort.Slice(s, func(i, j int) bool { return s[i].ModTime.Before(s[j].ModTime) })
	}
	byAge(raw)
	byAge(archived)

	var actions Actions

	if len(raw) > p.KeepRaw {
		limit := now.Add(-p.CompressAfter.Std())
		for _, e := range raw[:len(raw)-p.KeepRaw] {
			if e.ModTime.Before(limit) {
				actions.Compress = append(actions.Compress, e.Name)
			}
		}
	}

	if len(archived) > p.KeepArchives {
		limit := now.Add(-p.DeleteAfter.Std())
		for _, e := range archived[:len(archived)-p.KeepArchives] {
			if e.ModTime.Before(limit) {
				actions.Delete = append(actions.Delete, e.Name)
			}
		}
	}

	return actions
}
