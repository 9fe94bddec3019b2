// Package ledger は台帳のドメインロジックとキャッシュを提供する。
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/ledgerman/internal/model"
	"github.com/hitoshi/ledgerman/internal/repository"
)

// CacheMetrics はキャッシュのヒット/ミスを記録するインターフェース。
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Cache はリポジトリから1回だけ読み込むリードスルーキャッシュ。
//
// Initialize完了後にリポジトリ経由で行われた書き込みは、プロセスを
// 再起動して再初期化するまで反映されない。これは意図した単純化であり、
// 最新データが必要な呼び出し側はキャッシュを迂回してリポジトリを使うこと。
type Cache struct {
	repo    repository.LedgerRepository
	metrics CacheMetrics // nilの場合は記録しない

	once    sync.Once
	initErr error

	mu      sync.RWMutex
	ledgers map[string]*model.Ledger
}

// NewCache はCacheを生成する。metricsはnilでもよい。
func NewCache(repo repository.LedgerRepository, metrics CacheMetrics) *Cache {
	return &Cache{
		repo:    repo,
		metrics: metrics,
		ledgers: make(map[string]*model.Ledger),
	}
}

// Initialize は台帳の全件をリポジトリから読み込み、キャッシュを構築する。
// 並行して複数回呼ばれても読み込みはちょうど1回だけ実行され、
// 他の呼び出し側はその完了を待つ。
// キャンセルされた場合、キャッシュはその時点までの部分的な状態のまま残る
// （全件か空かのどちらか、という保証はしない）。
func (c *Cache) Initialize(ctx context.Context) error {
	c.once.Do(func() {
		ledgers := c.repo.ListAll(ctx)

		for _, ledger := range ledgers {
			if err := ctx.Err(); err != nil {
				c.initErr = err
				slog.Warn("台帳キャッシュの初期化がキャンセルされました",
					slog.Int("loaded", c.count()),
					slog.Int("total", len(ledgers)),
				)
				return
			}
			entry := *ledger // キャッシュはイミュータブルなコピーを保持する
			c.mu.Lock()
			c.ledgers[entry.ID] = &entry
			c.mu.Unlock()
		}

		slog.Info("台帳キャッシュを初期化しました",
			slog.Int("count", len(ledgers)),
		)
	})
	return c.initErr
}

func (c *Cache) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ledgers)
}

// All はキャッシュ全体のスナップショットコピーを返す。
// 並行読み取りに対して安全で、返された要素を変更しても
// キャッシュ本体には影響しない。
func (c *Cache) All() []*model.Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ledgers := make([]*model.Ledger, 0, len(c.ledgers))
	for _, l := range c.ledgers {
		entry := *l
		ledgers = append(ledgers, &entry)
	}
	return ledgers
}

// ByID は指定IDの台帳をO(1)で取得する。
// 見つからない場合は (nil, false) を返す。
func (c *Cache) ByID(id string) (*model.Ledger, bool) {
	c.mu.RLock()
	l, ok := c.ledgers[id]
	c.mu.RUnlock()

	if !ok {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		return nil, false
	}

	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	entry := *l
	return &entry, true
}
