// Package store persists the time-authority record across power cycles.
// It is the only state the daemon intentionally retains: the epoch and kind
// of the last satellite fix, so "minutes since last fix" survives a restart
// that comes back up on battery-backed time alone.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Fix kinds as persisted. Matches nmea.FixMode.String().
const (
	KindNone = "none"
	Kind2D   = "2d"
	Kind3D   = "3d"
)

// Record is the persisted time-authority state.
//
// Configured distinguishes "never ran before" from "ran but no fix yet":
// both have LastFixEpoch zero.
type Record struct {
	Configured   bool   `yaml:"configured"`
	LastFixEpoch int64  `yaml:"last_fix_epoch"`
	LastFixKind  string `yaml:"last_fix_kind"`
}

// Default is the record used on first run and after corruption.
func Default() Record {
	return Record{Configured: true, LastFixEpoch: 0, LastFixKind: KindNone}
}

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the record. Any anomaly (missing file, bad yaml, invalid
// fields) returns Default() alongside the cause; store trouble is never
// fatal, the caller just logs it and proceeds as a first run.
func (s *Store) Load() (Record, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Default(), err
	}
	var rec Record
	if err := yaml.Unmarshal(b, &rec); err != nil {
		return Default(), fmt.Errorf("store: %w", err)
	}
	switch rec.LastFixKind {
	case KindNone, Kind2D, Kind3D:
	default:
		return Default(), fmt.Errorf("store: invalid last_fix_kind %q", rec.LastFixKind)
	}
	if rec.LastFixEpoch < 0 {
		return Default(), fmt.Errorf("store: negative last_fix_epoch %d", rec.LastFixEpoch)
	}
	if !rec.Configured {
		return Default(), fmt.Errorf("store: record not marked configured")
	}
	return rec, nil
}

// Save writes the record atomically: temp file in the same directory, sync,
// rename. A crash mid-write leaves the previous record intact.
func (s *Store) Save(rec Record) error {
	rec.Configured = true
	b, err := yaml.Marshal(&rec)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
