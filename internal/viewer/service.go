// Package viewer は視聴者の残高・カルマ管理のドメインロジックを提供する。
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
	"github.com/hitoshi/ledgerman/internal/registry"
	"github.com/hitoshi/ledgerman/internal/repository"
)

// Service は視聴者管理のサービス層。
// コインの付与・カルマの増減・台帳への割り当てのビジネスロジックを提供する。
// チャットで観測中の視聴者はオンラインレジストリで追跡する。
type Service struct {
	viewers repository.ViewerRepository
	ledgers repository.LedgerRepository
	online  *registry.Synchronised[*model.Viewer]
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(viewers repository.ViewerRepository, ledgers repository.LedgerRepository) *Service {
	return &Service{
		viewers: viewers,
		ledgers: ledgers,
		online:  registry.NewSynchronised[*model.Viewer](),
	}
}

// EnsureViewer は視聴者をチャットでの観測時に冪等に登録・更新する。
// 既存の残高・カルマはUPSERTで上書きされない。
// 永続化に成功した視聴者はオンラインレジストリにも反映される。
func (s *Service) EnsureViewer(ctx context.Context, viewer *model.Viewer) error {
	viewer.LastSeen = time.Now().UTC()
	if viewer.Karma == 0 {
		viewer.Karma = 100 // 新規視聴者の初期カルマ
	}
	if err := s.viewers.Upsert(ctx, viewer); err != nil {
		return fmt.Errorf("視聴者の登録に失敗しました: %w", err)
	}

	// レジストリのエントリはイミュータブルなので、差し替えで最新化する。
	// Replaceは単一ロック内で完了するため、同一視聴者の並行観測が
	// 古いスナップショットを残すことはない。
	s.online.Replace(viewer)
	return nil
}

// RestoreOnline は保存されたスナップショットからオンラインレジストリを復元する。
// 再起動直後に前回の観測状態を引き継ぐために使用する。
func (s *Service) RestoreOnline(viewers []*model.Viewer) {
	for _, v := range viewers {
		s.online.Register(v)
	}
}

// OnlineViewers は現在オンラインの視聴者のスナップショットを返す。
func (s *Service) OnlineViewers() []*model.Viewer {
	return s.online.AllRegistrants()
}

// MarkOffline は視聴者をオンラインレジストリから外し、最終確認時刻を記録する。
// 観測されていなかった場合はfalseを返す。
func (s *Service) MarkOffline(ctx context.Context, id, platform string) bool {
	v := &model.Viewer{ID: id, Platform: platform}
	if !s.online.Unregister(v.Identity()) {
		return false
	}

	// 最終確認時刻の記録はベストエフォート
	if err := s.viewers.TouchLastSeen(ctx, id, platform, time.Now().UTC()); err != nil {
		slog.Warn("最終確認時刻の更新に失敗しました",
			slog.String("viewer_id", id),
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
	}
	return true
}

// AwardCoins は視聴者にコインを付与し、更新後の残高を返す。
// 付与量はカルマに比例してスケールされる（カルマ100で等倍）。
// 購読者には25%のボーナスが加算される。
func (s *Service) AwardCoins(ctx context.Context, id, platform string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.NewValidationError("付与量は正の値でなければなりません")
	}

	viewer, err := s.viewers.FindByIDAndPlatform(ctx, id, platform)
	if err != nil {
		return 0, err
	}

	scaled := amount * int64(viewer.Karma) / 100
	if viewer.Roles.Has(model.RoleSubscriber) {
		scaled += scaled / 4
	}

	balance, err := s.viewers.AddCoins(ctx, id, platform, scaled)
	if err != nil {
		return 0, err
	}

	slog.Info("コインを付与しました",
		slog.String("viewer_id", id),
		slog.String("platform", platform),
		slog.Int64("awarded", scaled),
		slog.Int64("balance", balance),
	)
	return balance, nil
}

// SpendCoins は視聴者の残高からコインを消費し、更新後の残高を返す。
// 残高判定と減算はリポジトリ側で単一の文として実行されるため、
// 並行する消費が同じ残高を二重に通過することはない。
// 残高不足の場合は検証エラーを返し、残高は変更しない。
func (s *Service) SpendCoins(ctx context.Context, id, platform string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.NewValidationError("消費量は正の値でなければなりません")
	}

	return s.viewers.DeductCoins(ctx, id, platform, amount)
}

// AdjustKarma はカルマを増減する。結果は[KarmaMin, KarmaMax]にクランプされる。
func (s *Service) AdjustKarma(ctx context.Context, id, platform string, delta int16) error {
	viewer, err := s.viewers.FindByIDAndPlatform(ctx, id, platform)
	if err != nil {
		return err
	}

	// int16同士の加算はオーバーフローしうるためintで計算してからクランプする
	sum := int(viewer.Karma) + int(delta)
	if sum < int(model.KarmaMin) {
		sum = int(model.KarmaMin)
	}
	if sum > int(model.KarmaMax) {
		sum = int(model.KarmaMax)
	}
	karma := int16(sum)
	if err := s.viewers.SetKarma(ctx, id, platform, karma); err != nil {
		return err
	}

	slog.Info("カルマを調整しました",
		slog.String("viewer_id", id),
		slog.String("platform", platform),
		slog.Int("delta", int(delta)),
		slog.Int("karma", int(karma)),
	)
	return nil
}

// AssignToLedger は視聴者を指定台帳に割り当てる。
// 台帳の存在を確認してから割り当てる。
func (s *Service) AssignToLedger(ctx context.Context, id, platform, ledgerID string) error {
	if _, err := s.ledgers.FindByID(ctx, ledgerID); err != nil {
		return err
	}

	viewer, err := s.viewers.FindByIDAndPlatform(ctx, id, platform)
	if err != nil {
		return err
	}

	viewer.LedgerID = ledgerID
	if err := s.viewers.Upsert(ctx, viewer); err != nil {
		return fmt.Errorf("台帳への割り当てに失敗しました: %w", err)
	}
	return nil
}

// Leaderboard は指定台帳の視聴者を残高降順で返す。
func (s *Service) Leaderboard(ctx context.Context, ledgerID string) ([]*model.Viewer, error) {
	return s.viewers.ListByLedger(ctx, ledgerID)
}
