package metrics

import (
	"strconv"
	"time"
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Cache metrics

func RecordCacheHit(cacheName string) {
	Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

func RecordCacheMiss(cacheName string) {
	Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

func RecordCacheOperation(operation, cacheName string, duration time.Duration) {
	m := Get()
	m.CacheOperationsTotal.WithLabelValues(operation, cacheName).Inc()
	m.CacheOperationDuration.WithLabelValues(operation, cacheName).Observe(duration.Seconds())
}

func RecordCacheEviction(cacheName string, count int) {
	Get().CacheEvictionsTotal.WithLabelValues(cacheName).Add(float64(count))
}

func RecordStaleServed(cacheName string) {
	Get().CacheStaleServedTotal.WithLabelValues(cacheName).Inc()
}

func RecordSharedCompute(cacheName string) {
	Get().CacheSharedComputes.WithLabelValues(cacheName).Inc()
}

func RecordCacheBackendError(backend, operation string) {
	Get().CacheBackendErrors.WithLabelValues(backend, operation).Inc()
}

// Store metrics

func RecordStoreQuery(operation string, duration time.Duration, err error) {
	m := Get()
	m.StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.StoreQueriesTotal.WithLabelValues(operation, status(err)).Inc()
}

func SetDatabaseConnections(database string, count int) {
	Get().DatabaseConnectionsOpen.WithLabelValues(database).Set(float64(count))
}

// Ranking metrics

func RecordRanking(kind string, duration time.Duration, size int) {
	m := Get()
	m.RankingDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.RankingResultSize.WithLabelValues(kind).Observe(float64(size))
}

func RecordRefresh(completedAt time.Time, err error) {
	m := Get()
	m.RefreshRunsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.RefreshLastCompleted.Set(float64(completedAt.Unix()))
	}
}

// Social metrics

func RecordMutation(kind string, changed bool) {
	Get().MutationsTotal.WithLabelValues(kind, strconv.FormatBool(changed)).Inc()
}

func RecordInvalidationEvent(trigger string) {
	Get().InvalidationEventsTotal.WithLabelValues(trigger).Inc()
}

// RecordError records an error by type and endpoint
func RecordError(errorType, endpoint string) {
	Get().ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}
