package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
)

// PostgresLedgerRepoはLedgerRepositoryインターフェースを満たすことを検証
func TestPostgresLedgerRepo_ImplementsInterface(t *testing.T) {
	var _ LedgerRepository = (*PostgresLedgerRepo)(nil)
}

// NewPostgresLedgerRepoが正しく初期化されることを検証
func TestNewPostgresLedgerRepo_Initializes(t *testing.T) {
	repo := NewPostgresLedgerRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Updateが空IDをDBに触れる前に検証エラーとして拒否することを検証
func TestPostgresLedgerRepo_Update_EmptyID_ValidationError(t *testing.T) {
	// dbがnilでもDBアクセス前に弾かれるため、パニックしないこと自体が検証になる
	repo := NewPostgresLedgerRepo(nil)

	err := repo.Update(context.Background(), &model.Ledger{ID: "", Name: "x"})
	if err == nil {
		t.Fatal("Update with empty ID should fail")
	}
	if !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// 合成される台帳名が "Ledger_" プレフィックスを持つことの期待動作
func TestLedgerNameSynthesis_Concept(t *testing.T) {
	ts := now()
	name := "Ledger_" + ts.Format("20060102_150405")

	if !strings.HasPrefix(name, "Ledger_") {
		t.Errorf("synthesized name %q should start with Ledger_", name)
	}
	if len(name) != len("Ledger_20060102_150405") {
		t.Errorf("unexpected synthesized name length: %q", name)
	}
}

// nowがマイクロ秒精度に切り詰められることを検証する。
// timestamptzの精度を超えるナノ秒が残ると、楽観的排他制御の
// 読み戻し比較が常に失敗してしまう。
func TestNow_TruncatedToMicroseconds(t *testing.T) {
	ts := now()
	if ts.Nanosecond()%1000 != 0 {
		t.Errorf("now() should not carry sub-microsecond precision: %v", ts)
	}
	if ts.Location() != time.UTC {
		t.Errorf("now() should be UTC, got %v", ts.Location())
	}
	if ts.After(time.Now().Add(time.Second)) {
		t.Error("now() must never be in the future")
	}
}
