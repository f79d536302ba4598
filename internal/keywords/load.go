package keywords

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Defaults is used when no keyword file can be read. These terms show up in
// the front matter or body of nearly every R Markdown document.
var Defaults = []string{"setup", "author", "date", "library", "output", "title"}

// ErrNoKeywords is returned by Load for a file without any keyword.
var ErrNoKeywords = errors.New("keywords: file contains no keywords")

// Load reads one keyword per line, dropping blanks and duplicates.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keywords file: %w", err)
	}
	defer file.Close()

	var out []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		k := strings.TrimSpace(scanner.Text())
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keywords file: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoKeywords
	}
	return out, nil
}

// LoadOrDefault is Load, falling back to Defaults on any error.
// The error is returned alongside the fallback so callers can report it.
func LoadOrDefault(path string) ([]string, error) {
	kws, err := Load(path)
	if err != nil {
		return append([]string(nil), Defaults...), err
	}
	return kws, nil
}
