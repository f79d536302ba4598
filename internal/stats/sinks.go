package stats

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/crawl"
)

// Log writes page statistics as debug log lines.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log sink.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Observe(p crawl.PageStats) {
	l.logger.Debug("page stats",
		zap.String("run_id", p.RunID.String()),
		zap.String("mode", string(p.Mode)),
		zap.String("terms", strings.Join(p.Terms, " ")),
		zap.String("account", p.Account),
		zap.Int("page", p.Page),
		zap.Int("new", p.New),
		zap.Int("known", p.Known),
		zap.Int("total", p.TotalCount),
	)
}

// Prometheus exports page statistics as counters.
type Prometheus struct {
	pages    *prometheus.CounterVec
	newIDs   *prometheus.CounterVec
	knownIDs *prometheus.CounterVec
	lastPage prometheus.Gauge
}

// NewPrometheus registers the crawl collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rmdcrawl_pages_total",
			Help: "Search result pages processed, labeled by mode.",
		}, []string{"mode"}),
		newIDs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rmdcrawl_identifiers_new_total",
			Help: "Repositories discovered for the first time, labeled by mode.",
		}, []string{"mode"}),
		knownIDs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rmdcrawl_identifiers_known_total",
			Help: "Search hits on repositories that were already known, labeled by mode.",
		}, []string{"mode"}),
		lastPage: f.NewGauge(prometheus.GaugeOpts{
			Name: "rmdcrawl_last_page",
			Help: "Page number of the most recently processed page.",
		}),
	}
}

func (p *Prometheus) Observe(s crawl.PageStats) {
	mode := string(s.Mode)
	p.pages.WithLabelValues(mode).Inc()
	p.newIDs.WithLabelValues(mode).Add(float64(s.New))
	p.knownIDs.WithLabelValues(mode).Add(float64(s.Known))
	p.lastPage.Set(float64(s.Page))
}

// Multi fans a page out to several observers.
type Multi []crawl.Observer

func (m Multi) Observe(s crawl.PageStats) {
	for _, o := range m {
		o.Observe(s)
	}
}
