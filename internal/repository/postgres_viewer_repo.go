package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
)

// PostgresViewerRepo はPostgreSQLを使用した視聴者リポジトリ。
type PostgresViewerRepo struct {
	db *sql.DB
}

// NewPostgresViewerRepo はPostgresViewerRepoを生成する。
func NewPostgresViewerRepo(db *sql.DB) *PostgresViewerRepo {
	return &PostgresViewerRepo{db: db}
}

// Upsert は視聴者を冪等にUPSERTする。
// (viewer_id, platform) のUNIQUE制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresViewerRepo) Upsert(ctx context.Context, viewer *model.Viewer) error {
	if viewer.ID == "" || viewer.Platform == "" {
		return model.NewValidationError("視聴者IDとプラットフォームは必須です")
	}

	viewer.Karma = model.ClampKarma(viewer.Karma)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO viewers (viewer_id, platform, name, roles, coins, karma, last_seen, ledger_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (viewer_id, platform) DO UPDATE SET
		    name = EXCLUDED.name,
		    roles = EXCLUDED.roles,
		    ledger_id = EXCLUDED.ledger_id,
		    last_seen = EXCLUDED.last_seen`,
		viewer.ID, viewer.Platform, viewer.Name, int16(viewer.Roles),
		viewer.Coins, viewer.Karma, viewer.LastSeen, nullString(viewer.LedgerID),
	)
	if err != nil {
		return model.NewBackendError("upsert viewer", err)
	}
	return nil
}

// FindByIDAndPlatform は外部IDとプラットフォームで視聴者を取得する。
// 見つからない場合はNotFoundエラーを返す。
func (r *PostgresViewerRepo) FindByIDAndPlatform(ctx context.Context, id, platform string) (*model.Viewer, error) {
	viewer := &model.Viewer{}
	var roles int16
	var ledgerID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT viewer_id, platform, name, roles, coins, karma, last_seen, ledger_id
		 FROM viewers WHERE viewer_id = $1 AND platform = $2`,
		id, platform,
	).Scan(
		&viewer.ID, &viewer.Platform, &viewer.Name, &roles,
		&viewer.Coins, &viewer.Karma, &viewer.LastSeen, &ledgerID,
	)

	if err == sql.ErrNoRows {
		return nil, model.NewViewerNotFoundError(id, platform)
	}
	if err != nil {
		return nil, model.NewBackendError("find viewer", err)
	}

	viewer.Roles = model.RoleSet(roles)
	viewer.LedgerID = nullStringValue(ledgerID)
	return viewer, nil
}

// ListByLedger は指定台帳に属する視聴者を残高降順で返す。
func (r *PostgresViewerRepo) ListByLedger(ctx context.Context, ledgerID string) ([]*model.Viewer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT viewer_id, platform, name, roles, coins, karma, last_seen, ledger_id
		 FROM viewers WHERE ledger_id = $1
		 ORDER BY coins DESC, viewer_id ASC`,
		ledgerID,
	)
	if err != nil {
		return nil, model.NewBackendError("list viewers by ledger", err)
	}
	defer rows.Close()

	var viewers []*model.Viewer
	for rows.Next() {
		viewer := &model.Viewer{}
		var roles int16
		var lid sql.NullString

		if err := rows.Scan(
			&viewer.ID, &viewer.Platform, &viewer.Name, &roles,
			&viewer.Coins, &viewer.Karma, &viewer.LastSeen, &lid,
		); err != nil {
			return nil, model.NewBackendError("scan viewer row", err)
		}

		viewer.Roles = model.RoleSet(roles)
		viewer.LedgerID = nullStringValue(lid)
		viewers = append(viewers, viewer)
	}

	if err := rows.Err(); err != nil {
		return nil, model.NewBackendError("iterate viewer rows", err)
	}

	return viewers, nil
}

// AddCoins は残高を原子的に加算し、更新後の残高を返す。
// 減算で0を下回る場合は0で止まる。加算はSQL側で行うため、
// 並行する加算同士が失われることはない。
func (r *PostgresViewerRepo) AddCoins(ctx context.Context, id, platform string, delta int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE viewers SET coins = GREATEST(0, coins + $3)
		 WHERE viewer_id = $1 AND platform = $2
		 RETURNING coins`,
		id, platform, delta,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, model.NewViewerNotFoundError(id, platform)
	}
	if err != nil {
		return 0, model.NewBackendError("add coins", err)
	}

	return balance, nil
}

// DeductCoins は残高が足りる場合のみ原子的に減算し、更新後の残高を返す。
// 残高判定と減算を単一のUPDATEで行うため、並行する消費が
// 同じ残高を二重に通過することはない。残高不足は検証エラーを返す。
func (r *PostgresViewerRepo) DeductCoins(ctx context.Context, id, platform string, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE viewers SET coins = coins - $3
		 WHERE viewer_id = $1 AND platform = $2 AND coins >= $3
		 RETURNING coins`,
		id, platform, amount,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		// 不存在か残高不足かを区別する
		viewer, ferr := r.FindByIDAndPlatform(ctx, id, platform)
		if ferr != nil {
			return 0, ferr
		}
		return 0, model.NewValidationError(
			fmt.Sprintf("残高が不足しています: %d < %d", viewer.Coins, amount))
	}
	if err != nil {
		return 0, model.NewBackendError("deduct coins", err)
	}

	return balance, nil
}

// SetKarma はカルマを設定する。範囲外の値はクランプされる。
func (r *PostgresViewerRepo) SetKarma(ctx context.Context, id, platform string, karma int16) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE viewers SET karma = $3 WHERE viewer_id = $1 AND platform = $2`,
		id, platform, model.ClampKarma(karma),
	)
	if err != nil {
		return model.NewBackendError("set karma", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewBackendError("set karma rows affected", err)
	}
	if affected == 0 {
		return model.NewViewerNotFoundError(id, platform)
	}

	return nil
}

// TouchLastSeen は最終確認時刻を更新する。
func (r *PostgresViewerRepo) TouchLastSeen(ctx context.Context, id, platform string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE viewers SET last_seen = $3 WHERE viewer_id = $1 AND platform = $2`,
		id, platform, seenAt.UTC(),
	)
	if err != nil {
		return model.NewBackendError("touch last seen", err)
	}
	return nil
}

// Delete は指定視聴者を削除する。行が存在しなくてもエラーにはならない。
func (r *PostgresViewerRepo) Delete(ctx context.Context, id, platform string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM viewers WHERE viewer_id = $1 AND platform = $2`,
		id, platform,
	)
	if err != nil {
		return model.NewBackendError("delete viewer", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ViewerRepository = (*PostgresViewerRepo)(nil)
