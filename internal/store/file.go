package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// File is a newline-delimited, append-only identifier file.
type File struct {
	path string
}

// NewFile returns a File store backed by path. The file is created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load reads every identifier in the file. A missing file yields an empty set.
func (f *File) Load(_ context.Context) (Set, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("opening %s: %w", f.path, err)
	}
	defer file.Close()

	ids := Set{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ids.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return ids, nil
}

// Save appends one line per identifier and fsyncs before returning.
func (f *File) Save(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening %s for append: %w", f.path, err)
	}

	w := bufio.NewWriter(file)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			file.Close()
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flushing %s: %w", f.path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("syncing %s: %w", f.path, err)
	}
	return file.Close()
}

// Close is a no-op; every Save opens and closes the file.
func (f *File) Close() error {
	return nil
}
