// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// キャッシュ・リポジトリ・ファイルストアの利用側から呼ばれる。
type MetricsCollector interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordUpdateConflict()
	RecordBlockedWrite()
	RecordQueryLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	updateConflicts prometheus.Counter
	blockedWrites   prometheus.Counter
	queryLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerman_cache_hits_total",
			Help: "台帳キャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerman_cache_misses_total",
			Help: "台帳キャッシュミスの合計数",
		}),
		updateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerman_update_conflicts_total",
			Help: "楽観的排他制御の競合の合計数",
		}),
		blockedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerman_blocked_writes_total",
			Help: "ロックアウトにより拒否されたファイル書き込みの合計数",
		}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerman_query_latency_seconds",
			Help:    "リポジトリ操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.updateConflicts,
		c.blockedWrites,
		c.queryLatency,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordUpdateConflict は楽観的排他制御の競合を記録する。
func (c *Collector) RecordUpdateConflict() {
	c.updateConflicts.Inc()
}

// RecordBlockedWrite はロックアウトによる書き込み拒否を記録する。
func (c *Collector) RecordBlockedWrite() {
	c.blockedWrites.Inc()
}

// RecordQueryLatency はリポジトリ操作のレイテンシを記録する。
func (c *Collector) RecordQueryLatency(duration time.Duration) {
	c.queryLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
