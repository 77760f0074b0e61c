// Package spool holds uploaded bytes in temporary files while they are
// stored and moderated.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const filePrefix = "upload-"

// Spool creates upload files in one directory.
type Spool struct {
	dir string
}

// New prepares dir for spooling. An empty dir uses a subdirectory of the
// system temp directory.
func New(dir string) (*Spool, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "safeupload")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create spool dir %s: %w", dir, err)
	}
	return &Spool{dir: dir}, nil
}

func (s *Spool) Dir() string { return s.dir }

// File is a spooled upload positioned at its start. Close removes it.
type File struct {
	f    *os.File
	size int64
}

// Write copies r into a new spool file. The file is removed if copying
// fails, so callers only clean up on success.
func (s *Spool) Write(r io.Reader) (*File, error) {
	f, err := os.CreateTemp(s.dir, filePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	sf := &File{f: f}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = sf.Close()
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := sf.Rewind(); err != nil {
		_ = sf.Close()
		return nil, fmt.Errorf("failed to rewind spool file: %w", err)
	}
	sf.size = n
	return sf, nil
}

func (f *File) Read(p []byte) (int, error) { return f.f.Read(p) }

// Rewind seeks back to the start so the bytes can be read again.
func (f *File) Rewind() error {
	_, err := f.f.Seek(0, io.SeekStart)
	return err
}

func (f *File) Size() int64  { return f.size }
func (f *File) Name() string { return f.f.Name() }

// Close closes and deletes the file. It is safe to call more than once.
func (f *File) Close() error {
	closeErr := f.f.Close()
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}
	rmErr := os.Remove(f.f.Name())
	if errors.Is(rmErr, os.ErrNotExist) {
		rmErr = nil
	}
	return errors.Join(closeErr, rmErr)
}

// Sweep deletes spool files last modified before now-maxAge and returns
// how many were removed. Files from crashed requests end up here.
func (s *Spool) Sweep(maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read spool dir: %w", err)
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
