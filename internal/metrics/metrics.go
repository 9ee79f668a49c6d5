package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	BookmarksParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookmarks_parsed_total",
		Help: "Total number of bookmark records parsed from the input file.",
	})
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmark_fetch_attempts_total",
		Help: "Metadata fetch attempts by result.",
	}, []string{"result"}) // result: "success" or an error kind
	ClassifyAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmark_classify_attempts_total",
		Help: "Classification attempts by result.",
	}, []string{"result"})
	RecordsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmark_records_finished_total",
		Help: "Records that reached a terminal state, by final category.",
	}, []string{"category"})
	RateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookmark_rate_limit_cooldowns_total",
		Help: "Times the shared classify cooldown window was triggered.",
	})

	RecordsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmark_records_pending",
		Help: "Records waiting for a worker slot.",
	})
	RecordsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmark_records_in_flight",
		Help: "Records currently fetching or classifying.",
	})
	RecordsDone = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmark_records_done",
		Help: "Records that obtained a valid category.",
	})
	RecordsFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookmark_records_failed",
		Help: "Records that exhausted their retry budget.",
	})
)

// Serve exposes /metrics and /health on addr for the duration of a run.
// Errors are logged, not fatal: losing the operator endpoint should
// never kill the pipeline.
func Serve(addr string) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return srv
}
