package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var batchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedgen_ingest_batches_processed_total",
	Help: "Number of event batches processed successfully",
})

var batchesFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedgen_ingest_batches_failed_total",
	Help: "Number of event batches dropped due to processing errors",
})

var postsIndexed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedgen_ingest_posts_indexed_total",
	Help: "Number of posts flushed to storage",
})

var interactionsIndexed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedgen_ingest_interactions_indexed_total",
	Help: "Number of likes and reposts written to storage",
})

var flushFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "feedgen_ingest_flush_failures_total",
	Help: "Number of failed micro-batch flush attempts",
})
