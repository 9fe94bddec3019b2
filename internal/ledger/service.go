package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
	"github.com/hitoshi/ledgerman/internal/repository"
)

// maxUpdateRetries は楽観的排他制御の競合時に再試行する最大回数。
const maxUpdateRetries = 3

// ServiceMetrics は台帳操作の競合とレイテンシを記録するインターフェース。
type ServiceMetrics interface {
	RecordUpdateConflict()
	RecordQueryLatency(duration time.Duration)
}

// Service は台帳管理のサービス層。
// 競合時の再取得・再試行を含む台帳操作のビジネスロジックを提供する。
type Service struct {
	repo    repository.LedgerRepository
	metrics ServiceMetrics // nilの場合は記録しない
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.LedgerRepository, metrics ServiceMetrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// observe はリポジトリ呼び出しのレイテンシを記録する。
// defer s.observe(time.Now()) の形で使う。
func (s *Service) observe(start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordQueryLatency(time.Since(start))
	}
}

// Create は台帳を新規作成する。nameは空でもよい。
func (s *Service) Create(ctx context.Context, name string) (*model.Ledger, error) {
	defer s.observe(time.Now())

	ledger, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("台帳の作成に失敗しました: %w", err)
	}

	slog.Info("台帳を作成しました",
		slog.String("ledger_id", ledger.ID),
		slog.String("name", ledger.Name),
	)
	return ledger, nil
}

// Get は指定IDの台帳を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Ledger, error) {
	defer s.observe(time.Now())
	return s.repo.FindByID(ctx, id)
}

// List は全台帳を返す。
func (s *Service) List(ctx context.Context) []*model.Ledger {
	defer s.observe(time.Now())
	return s.repo.ListAll(ctx)
}

// Rename は台帳名を変更する。名前は後勝ちで上書きされる。
func (s *Service) Rename(ctx context.Context, id, name string) error {
	if name == "" {
		return model.NewValidationError("台帳名が空です")
	}
	defer s.observe(time.Now())
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return err
	}

	slog.Info("台帳名を変更しました",
		slog.String("ledger_id", id),
		slog.String("name", name),
	)
	return nil
}

// UpdateWithRetry は台帳を読み取り、applyで変換した結果を
// 楽観的排他制御付きで書き戻す。競合した場合は最新の状態を
// 再取得して限られた回数だけ再試行する。
func (s *Service) UpdateWithRetry(ctx context.Context, id string, apply func(*model.Ledger)) (*model.Ledger, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		start := time.Now()
		ledger, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		apply(ledger)

		err = s.repo.Update(ctx, ledger)
		s.observe(start)
		if err == nil {
			return ledger, nil
		}
		if !model.IsConflict(err) {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.RecordUpdateConflict()
		}

		lastErr = err
		slog.Warn("台帳の更新が競合しました。再試行します",
			slog.String("ledger_id", id),
			slog.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("台帳の更新が%d回競合しました: %w", maxUpdateRetries, lastErr)
}

// Delete は指定IDの台帳を削除する（冪等）。
func (s *Service) Delete(ctx context.Context, id string) error {
	defer s.observe(time.Now())
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("台帳を削除しました",
		slog.String("ledger_id", id),
	)
	return nil
}
