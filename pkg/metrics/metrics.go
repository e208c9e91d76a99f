package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CrawlFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artseek_crawl_fetch_total",
		Help: "Per-item upstream fetches by museum and outcome",
	}, []string{"museum", "outcome"})

	CrawlInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artseek_crawl_inserted_total",
		Help: "Records inserted by the crawl coordinator",
	}, []string{"museum"})

	CrawlCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artseek_crawl_cycles_total",
		Help: "Completed crawl cycles by museum and status",
	}, []string{"museum", "status"})

	IngestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artseek_ingest_batches_total",
		Help: "Embedding ingest batches by status",
	}, []string{"status"})

	IngestRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artseek_ingest_rows_total",
		Help: "Embedding rows inserted",
	})

	IndexVectors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artseek_index_vectors",
		Help: "Number of vectors in the loaded (or last built) index",
	})

	QueryMissingRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artseek_query_missing_rows_total",
		Help: "Index positions whose embedding row was not found at query time",
	})

	QueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artseek_query_latency_seconds",
		Help:    "Query service latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "status"})
)

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
