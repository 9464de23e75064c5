package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Szchiji/lunbo/internal/broadcast"
	"github.com/Szchiji/lunbo/internal/eventbus"
	"github.com/Szchiji/lunbo/pkg/logx"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunbo_dispatch_total",
			Help: "Total number of dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lunbo_dispatch_duration_seconds",
			Help:    "Dispatch latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lunbo_tick_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	tickSchedules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lunbo_tick_schedules",
			Help: "Number of schedules seen in the last poll cycle",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe feeds broadcast events from the bus into the Prometheus
// collectors. The returned stop function unsubscribes and waits for the
// consumer goroutine to drain.
func Observe(bus eventbus.Bus) (stop func()) {
	ch, unsub := bus.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			switch d := e.Data.(type) {
			case broadcast.DispatchEvent:
				dispatchTotal.WithLabelValues(d.Outcome).Inc()
				dispatchDuration.Observe(d.Took.Seconds())
			case broadcast.TickEvent:
				tickDuration.Observe(d.Took.Seconds())
				tickSchedules.Set(float64(d.Schedules))
			}
		}
	}()
	return func() {
		unsub()
		<-done
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	log.Info("metrics listening", logx.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", logx.Err(err))
	}
}
