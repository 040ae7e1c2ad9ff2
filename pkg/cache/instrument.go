package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheMetricsOnce sync.Once
	cacheRequests    *prometheus.CounterVec
	cacheLayerHits   *prometheus.CounterVec
)

func initCacheMetricsOnce() {
	cacheMetricsOnce.Do(func() {
		cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_cache_requests_total",
			Help: "Cache operations by cache name, operation and result",
		}, []string{"cache", "op", "result"})
		cacheLayerHits = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "marketbrief_cache_layer_hits_total",
			Help: "Layered cache hits by layer",
		}, []string{"layer"})
	})
}

func observeLayer(layer string) {
	initCacheMetricsOnce()
	cacheLayerHits.WithLabelValues(layer).Inc()
}

// Instrumented records hit, miss and error counts of the wrapped Service.
type Instrumented struct {
	Service
	name string
}

// Instrument wraps s so every Get/Set reports to Prometheus under name.
func Instrument(s Service, name string) *Instrumented {
	initCacheMetricsOnce()
	return &Instrumented{Service: s, name: name}
}

func (i *Instrumented) Get(ctx context.Context, key string, dest interface{}) error {
	err := i.Service.Get(ctx, key, dest)
	switch {
	case err == nil:
		cacheRequests.WithLabelValues(i.name, "get", "hit").Inc()
	case errors.Is(err, ErrCacheMiss):
		cacheRequests.WithLabelValues(i.name, "get", "miss").Inc()
	default:
		cacheRequests.WithLabelValues(i.name, "get", "error").Inc()
	}
	return err
}

func (i *Instrumented) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	err := i.Service.Set(ctx, key, value, expiration)
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheRequests.WithLabelValues(i.name, "set", result).Inc()
	return err
}

// Close releases the wrapped cache when it owns resources.
func (i *Instrumented) Close() error {
	if c, ok := i.Service.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
