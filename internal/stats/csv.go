// Package stats records one row per crawled page, for later analysis of
// which keyword combinations pay off.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/crawl"
)

var csvHeader = []string{"run_id", "timestamp", "mode", "terms", "account", "page", "new", "known", "total"}

// CSV appends page statistics to a CSV file.
type CSV struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	logger *zap.Logger
	err    error
}

// OpenCSV opens path for appending, writing the header if the file is new.
func OpenCSV(path string, logger *zap.Logger) (*CSV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening stats file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat stats file: %w", err)
	}

	s := &CSV{file: file, w: csv.NewWriter(file), logger: logger}
	if info.Size() == 0 {
		if err := s.write(csvHeader); err != nil {
			file.Close()
			return nil, err
		}
	}
	return s, nil
}

// Observe writes one row and flushes it.
func (s *CSV) Observe(p crawl.PageStats) {
	row := []string{
		p.RunID.String(),
		p.At.UTC().Format(time.RFC3339),
		string(p.Mode),
		strings.Join(p.Terms, " "),
		p.Account,
		strconv.Itoa(p.Page),
		strconv.Itoa(p.New),
		strconv.Itoa(p.Known),
		strconv.Itoa(p.TotalCount),
	}
	if err := s.write(row); err != nil {
		s.logger.Error("writing stats row", zap.Error(err))
	}
}

func (s *CSV) write(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write(row); err != nil {
		s.err = err
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.err = err
		return err
	}
	return nil
}

// Err returns the first write error, if any.
func (s *CSV) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes and closes the file.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
