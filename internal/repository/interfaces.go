// Package repository はデータ永続化のインターフェースを定義する。
//
// 各操作は呼び出しごとに独立した接続/トランザクションスコープを持ち、
// 呼び出しをまたいで接続を保持しない。失敗はmodelパッケージの
// エラー分類に変換して返し、ドライバ例外をそのまま境界の外へ出さない。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
)

// LedgerRepository は台帳データの永続化インターフェース。
type LedgerRepository interface {
	// Create は台帳を新規作成する。nameが空の場合は
	// "Ledger_<タイムスタンプ>" 形式の名前を合成する。
	Create(ctx context.Context, name string) (*model.Ledger, error)

	// FindByID は指定IDの台帳を取得する。見つからない場合はNotFoundエラーを返す。
	FindByID(ctx context.Context, id string) (*model.Ledger, error)

	// FindByName は指定名の台帳を取得する。見つからない場合はNotFoundエラーを返す。
	FindByName(ctx context.Context, name string) (*model.Ledger, error)

	// ListAll は全台帳を返す。バックエンド障害時はログに記録し、
	// エラーではなく空スライスを返す。
	ListAll(ctx context.Context) []*model.Ledger

	// Rename は台帳名を無条件に更新する（後勝ち）。last_modifiedも更新される。
	Rename(ctx context.Context, id, name string) error

	// Update は楽観的排他制御付きで台帳を更新する。
	// 読み取り時のLastModifiedと永続化済みの値が一致しない場合は
	// Conflictエラーを返す。呼び出し側は再取得してリトライすること。
	Update(ctx context.Context, ledger *model.Ledger) error

	// Delete は指定IDの台帳を削除する。行が存在しなくてもエラーにはならない（冪等）。
	Delete(ctx context.Context, id string) error
}

// ViewerRepository は視聴者データの永続化インターフェース。
// (viewer_id, platform) の組が一意キーとなる。
type ViewerRepository interface {
	// Upsert は視聴者を冪等にUPSERTする。
	Upsert(ctx context.Context, viewer *model.Viewer) error

	// FindByIDAndPlatform は外部IDとプラットフォームで視聴者を取得する。
	// 見つからない場合はNotFoundエラーを返す。
	FindByIDAndPlatform(ctx context.Context, id, platform string) (*model.Viewer, error)

	// ListByLedger は指定台帳に属する視聴者の一覧を返す。
	ListByLedger(ctx context.Context, ledgerID string) ([]*model.Viewer, error)

	// AddCoins は残高を原子的に加算し、更新後の残高を返す。
	// 減算で0を下回る場合は0で止まる。
	AddCoins(ctx context.Context, id, platform string, delta int64) (int64, error)

	// DeductCoins は残高が足りる場合のみ原子的に減算し、更新後の残高を返す。
	// 残高判定と減算は単一の文で行われる。残高不足は検証エラーを返す。
	DeductCoins(ctx context.Context, id, platform string, amount int64) (int64, error)

	// SetKarma はカルマを設定する。範囲外の値はクランプされる。
	SetKarma(ctx context.Context, id, platform string, karma int16) error

	// TouchLastSeen は最終確認時刻を更新する。
	TouchLastSeen(ctx context.Context, id, platform string, seenAt time.Time) error

	// Delete は指定視聴者を削除する。行が存在しなくてもエラーにはならない（冪等）。
	Delete(ctx context.Context, id, platform string) error
}
