package crawl

import (
	"time"

	"github.com/google/uuid"
)

// Mode names the discovery strategy that produced a page.
type Mode string

const (
	ModeKeywords Mode = "keywords"
	ModeAccounts Mode = "accounts"
)

// PageStats is emitted once for every processed page.
type PageStats struct {
	RunID uuid.UUID
	Mode  Mode
	// Terms are the sampled keywords, or the account term in account mode.
	Terms []string
	// Account is set in account mode only.
	Account string
	Query   string
	Page    int
	New     int
	Known   int
	// TotalCount is the remote's reported number of matches for Query.
	TotalCount int
	At         time.Time
}

// Observer consumes page statistics. Observers run on the crawl goroutine
// and should return quickly.
type Observer interface {
	Observe(PageStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(PageStats)

func (f ObserverFunc) Observe(s PageStats) { f(s) }
