package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/ledgerman/internal/model"
)

// TestService_Create は台帳作成がリポジトリへ委譲されることを検証する。
func TestService_Create(t *testing.T) {
	repo := &mockLedgerRepo{
		createFn: func(ctx context.Context, name string) (*model.Ledger, error) {
			return &model.Ledger{ID: "new-id", Name: name, LastModified: time.Now()}, nil
		},
	}
	svc := NewService(repo, nil)

	ledger, err := svc.Create(context.Background(), "Alpha")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if ledger.Name != "Alpha" {
		t.Errorf("Name = %q, want %q", ledger.Name, "Alpha")
	}
	if ledger.ID == "" {
		t.Error("expected generated ID")
	}
}

// TestService_Rename_EmptyName は空の名前が検証エラーになることを検証する。
func TestService_Rename_EmptyName(t *testing.T) {
	svc := NewService(&mockLedgerRepo{}, nil)

	err := svc.Rename(context.Background(), "l-1", "")
	if err == nil {
		t.Fatal("Rename with empty name should fail")
	}
	if !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// TestService_UpdateWithRetry_ConflictThenSuccess は競合後の再試行で
// 最新状態を再取得して更新が成功することを検証する。
func TestService_UpdateWithRetry_ConflictThenSuccess(t *testing.T) {
	stale := time.Now().Add(-time.Hour)
	fresh := time.Now()
	fetches := 0

	repo := &mockLedgerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ledger, error) {
			fetches++
			if fetches == 1 {
				return &model.Ledger{ID: id, Name: "old", LastModified: stale}, nil
			}
			return &model.Ledger{ID: id, Name: "old", LastModified: fresh}, nil
		},
		updateFn: func(ctx context.Context, ledger *model.Ledger) error {
			if ledger.LastModified.Equal(stale) {
				return model.NewUpdateConflictError(ledger.ID)
			}
			return nil
		},
	}
	svc := NewService(repo, nil)

	ledger, err := svc.UpdateWithRetry(context.Background(), "l-1", func(l *model.Ledger) {
		l.Name = "renamed"
	})
	if err != nil {
		t.Fatalf("UpdateWithRetry returned error: %v", err)
	}
	if ledger.Name != "renamed" {
		t.Errorf("Name = %q, want %q", ledger.Name, "renamed")
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want 2 (one refetch after conflict)", fetches)
	}
}

// TestService_UpdateWithRetry_ExhaustsRetries は競合が続く場合に
// 上限回数で打ち切られることを検証する。
func TestService_UpdateWithRetry_ExhaustsRetries(t *testing.T) {
	attempts := 0
	repo := &mockLedgerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ledger, error) {
			return &model.Ledger{ID: id, Name: "old", LastModified: time.Now()}, nil
		},
		updateFn: func(ctx context.Context, ledger *model.Ledger) error {
			attempts++
			return model.NewUpdateConflictError(ledger.ID)
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.UpdateWithRetry(context.Background(), "l-1", func(l *model.Ledger) {})
	if err == nil {
		t.Fatal("UpdateWithRetry should fail after exhausting retries")
	}
	if attempts != maxUpdateRetries {
		t.Errorf("attempts = %d, want %d", attempts, maxUpdateRetries)
	}
	if !model.IsConflict(err) {
		t.Errorf("final error should wrap the conflict, got %v", err)
	}
}

// mockServiceMetrics はServiceMetricsのテスト用実装。
type mockServiceMetrics struct {
	conflicts int
	latencies int
}

func (m *mockServiceMetrics) RecordUpdateConflict()              { m.conflicts++ }
func (m *mockServiceMetrics) RecordQueryLatency(_ time.Duration) { m.latencies++ }

// TestService_UpdateWithRetry_RecordsConflictMetric は競合の発生が
// メトリクスへ記録され、各試行のレイテンシも観測されることを検証する。
func TestService_UpdateWithRetry_RecordsConflictMetric(t *testing.T) {
	calls := 0
	repo := &mockLedgerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ledger, error) {
			return &model.Ledger{ID: id, Name: "old", LastModified: time.Now()}, nil
		},
		updateFn: func(ctx context.Context, ledger *model.Ledger) error {
			calls++
			if calls == 1 {
				return model.NewUpdateConflictError(ledger.ID)
			}
			return nil
		},
	}
	m := &mockServiceMetrics{}
	svc := NewService(repo, m)

	if _, err := svc.UpdateWithRetry(context.Background(), "l-1", func(l *model.Ledger) {}); err != nil {
		t.Fatalf("UpdateWithRetry returned error: %v", err)
	}
	if m.conflicts != 1 {
		t.Errorf("conflicts recorded = %d, want 1", m.conflicts)
	}
	if m.latencies != 2 {
		t.Errorf("latencies recorded = %d, want 2 (one per attempt)", m.latencies)
	}
}

// TestService_Get_RecordsLatencyMetric は読み取り操作のレイテンシが
// メトリクスへ記録されることを検証する。
func TestService_Get_RecordsLatencyMetric(t *testing.T) {
	repo := &mockLedgerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ledger, error) {
			return &model.Ledger{ID: id, Name: "alpha", LastModified: time.Now()}, nil
		},
	}
	m := &mockServiceMetrics{}
	svc := NewService(repo, m)

	if _, err := svc.Get(context.Background(), "l-1"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if m.latencies != 1 {
		t.Errorf("latencies recorded = %d, want 1", m.latencies)
	}
}

// TestService_UpdateWithRetry_NonConflictErrorStops は競合以外のエラーで
// 即座に打ち切られることを検証する。
func TestService_UpdateWithRetry_NonConflictErrorStops(t *testing.T) {
	attempts := 0
	repo := &mockLedgerRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Ledger, error) {
			return &model.Ledger{ID: id, LastModified: time.Now()}, nil
		},
		updateFn: func(ctx context.Context, ledger *model.Ledger) error {
			attempts++
			return model.NewBackendError("update ledger", context.DeadlineExceeded)
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.UpdateWithRetry(context.Background(), "l-1", func(l *model.Ledger) {})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on backend error)", attempts)
	}
}
