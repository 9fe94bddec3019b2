package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ledgerman/internal/model"
)

// PostgresLedgerRepo はPostgreSQLを使用した台帳リポジトリ。
type PostgresLedgerRepo struct {
	db *sql.DB
}

// NewPostgresLedgerRepo はPostgresLedgerRepoを生成する。
func NewPostgresLedgerRepo(db *sql.DB) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{db: db}
}

// now は書き込み用のタイムスタンプを返す。
// PostgreSQLのtimestamptzはマイクロ秒精度のため、楽観的排他制御の
// 比較が往復で一致するようマイクロ秒に切り詰める。
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create は台帳を新規作成する。nameが空の場合は
// "Ledger_<タイムスタンプ>" 形式の名前を合成する。
func (r *PostgresLedgerRepo) Create(ctx context.Context, name string) (*model.Ledger, error) {
	ts := now()
	if name == "" {
		name = "Ledger_" + ts.Format("20060102_150405")
	}

	ledger := &model.Ledger{
		ID:           uuid.New().String(),
		Name:         name,
		LastModified: ts,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledgers (ledger_id, name, last_modified) VALUES ($1, $2, $3)`,
		ledger.ID, ledger.Name, ledger.LastModified,
	)
	if err != nil {
		return nil, model.NewBackendError("create ledger", err)
	}

	return ledger, nil
}

// FindByID は指定IDの台帳を取得する。見つからない場合はNotFoundエラーを返す。
func (r *PostgresLedgerRepo) FindByID(ctx context.Context, id string) (*model.Ledger, error) {
	ledger := &model.Ledger{}
	err := r.db.QueryRowContext(ctx,
		`SELECT ledger_id, name, last_modified FROM ledgers WHERE ledger_id = $1`,
		id,
	).Scan(&ledger.ID, &ledger.Name, &ledger.LastModified)

	if err == sql.ErrNoRows {
		return nil, model.NewLedgerNotFoundError(id)
	}
	if err != nil {
		return nil, model.NewBackendError("find ledger by id", err)
	}

	return ledger, nil
}

// FindByName は指定名の台帳を取得する。見つからない場合はNotFoundエラーを返す。
func (r *PostgresLedgerRepo) FindByName(ctx context.Context, name string) (*model.Ledger, error) {
	ledger := &model.Ledger{}
	err := r.db.QueryRowContext(ctx,
		`SELECT ledger_id, name, last_modified FROM ledgers WHERE name = $1`,
		name,
	).Scan(&ledger.ID, &ledger.Name, &ledger.LastModified)

	if err == sql.ErrNoRows {
		return nil, model.NewLedgerNotFoundError(name)
	}
	if err != nil {
		return nil, model.NewBackendError("find ledger by name", err)
	}

	return ledger, nil
}

// ListAll は全台帳をlast_modified降順で返す。
// バックエンド障害時はログに記録し、空スライスを返す。
func (r *PostgresLedgerRepo) ListAll(ctx context.Context) []*model.Ledger {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ledger_id, name, last_modified FROM ledgers ORDER BY last_modified DESC`,
	)
	if err != nil {
		slog.Error("台帳一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return []*model.Ledger{}
	}
	defer rows.Close()

	ledgers := []*model.Ledger{}
	for rows.Next() {
		ledger := &model.Ledger{}
		if err := rows.Scan(&ledger.ID, &ledger.Name, &ledger.LastModified); err != nil {
			slog.Error("台帳一覧の読み取りに失敗しました",
				slog.String("error", err.Error()),
			)
			return []*model.Ledger{}
		}
		ledgers = append(ledgers, ledger)
	}

	if err := rows.Err(); err != nil {
		slog.Error("台帳一覧の走査に失敗しました",
			slog.String("error", err.Error()),
		)
		return []*model.Ledger{}
	}

	return ledgers
}

// Rename は台帳名を無条件に更新する。
// 名前は無害なフィールドのため楽観的排他制御を行わず、後勝ちとする。
func (r *PostgresLedgerRepo) Rename(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ledgers SET name = $2, last_modified = $3 WHERE ledger_id = $1`,
		id, name, now(),
	)
	if err != nil {
		return model.NewBackendError("rename ledger", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewBackendError("rename ledger rows affected", err)
	}
	if affected == 0 {
		return model.NewLedgerNotFoundError(id)
	}

	return nil
}

// Update は楽観的排他制御付きで台帳を更新する。
// UPDATE文の条件にIDと読み取り時のlast_modifiedの両方を指定し、
// 影響行数が0の場合は読み取り後に他の書き込みが先行したとみなして
// Conflictエラーを返す。ロックを保持せずに更新の上書きを防ぐ。
func (r *PostgresLedgerRepo) Update(ctx context.Context, ledger *model.Ledger) error {
	if ledger.ID == "" {
		return model.NewValidationError("台帳IDが空です")
	}

	modified := now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE ledgers SET name = $2, last_modified = $3
		 WHERE ledger_id = $1 AND last_modified = $4`,
		ledger.ID, ledger.Name, modified, ledger.LastModified,
	)
	if err != nil {
		return model.NewBackendError("update ledger", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewBackendError("update ledger rows affected", err)
	}
	if affected == 0 {
		return model.NewUpdateConflictError(ledger.ID)
	}

	// 呼び出し側のスナップショットを最新化し、連続更新を可能にする
	ledger.LastModified = modified
	return nil
}

// Delete は指定IDの台帳を削除する。行が存在しなくてもエラーにはならない。
func (r *PostgresLedgerRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM ledgers WHERE ledger_id = $1`,
		id,
	)
	if err != nil {
		return model.NewBackendError("delete ledger", err)
	}
	return nil
}

// compile-time interface check
var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
