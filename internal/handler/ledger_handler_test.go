package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ledgerman/internal/model"
)

// --- モック定義 ---

// mockLedgerService はLedgerServiceInterfaceのモック実装。
type mockLedgerService struct {
	createFn func(ctx context.Context, name string) (*model.Ledger, error)
	getFn    func(ctx context.Context, id string) (*model.Ledger, error)
	listFn   func(ctx context.Context) []*model.Ledger
	renameFn func(ctx context.Context, id, name string) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockLedgerService) Create(ctx context.Context, name string) (*model.Ledger, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name)
	}
	return nil, nil
}

func (m *mockLedgerService) Get(ctx context.Context, id string) (*model.Ledger, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLedgerService) List(ctx context.Context) []*model.Ledger {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil
}

func (m *mockLedgerService) Rename(ctx context.Context, id, name string) error {
	if m.renameFn != nil {
		return m.renameFn(ctx, id, name)
	}
	return nil
}

func (m *mockLedgerService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockLedgerCache はLedgerCacheInterfaceのモック実装。
type mockLedgerCache struct {
	allFn  func() []*model.Ledger
	byIDFn func(id string) (*model.Ledger, bool)
}

func (m *mockLedgerCache) All() []*model.Ledger {
	if m.allFn != nil {
		return m.allFn()
	}
	return nil
}

func (m *mockLedgerCache) ByID(id string) (*model.Ledger, bool) {
	if m.byIDFn != nil {
		return m.byIDFn(id)
	}
	return nil, false
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
// 既にルートコンテキストがある場合はそこへ追記する。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	if rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context); ok {
		rctx.URLParams.Add(key, value)
		return r
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// --- テスト ---

func TestLedgerHandler_CreateLedger(t *testing.T) {
	now := time.Now().UTC()

	t.Run("正常系: 台帳を作成する", func(t *testing.T) {
		service := &mockLedgerService{
			createFn: func(ctx context.Context, name string) (*model.Ledger, error) {
				return &model.Ledger{ID: "l-1", Name: name, LastModified: now}, nil
			},
		}
		h := NewLedgerHandler(service, nil)

		body := bytes.NewBufferString(`{"name":"Season 3"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/ledgers", body)
		rec := httptest.NewRecorder()
		h.CreateLedger(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", rec.Code)
		}
		var resp ledgerResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Name != "Season 3" {
			t.Errorf("name = %q, want Season 3", resp.Name)
		}
	})

	t.Run("異常系: 不正なJSONは400", func(t *testing.T) {
		h := NewLedgerHandler(&mockLedgerService{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/ledgers", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.CreateLedger(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if got := parseErrorResponse(t, rec)["code"]; got != model.ErrCodeValidationFailed {
			t.Errorf("code = %q, want %q", got, model.ErrCodeValidationFailed)
		}
	})
}

func TestLedgerHandler_GetLedger(t *testing.T) {
	t.Run("正常系: キャッシュから取得する", func(t *testing.T) {
		serviceCalled := false
		service := &mockLedgerService{
			getFn: func(ctx context.Context, id string) (*model.Ledger, error) {
				serviceCalled = true
				return nil, model.NewLedgerNotFoundError(id)
			},
		}
		cache := &mockLedgerCache{
			byIDFn: func(id string) (*model.Ledger, bool) {
				return &model.Ledger{ID: id, Name: "cached"}, true
			},
		}
		h := NewLedgerHandler(service, cache)

		req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/ledgers/l-1", nil), "id", "l-1")
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if serviceCalled {
			t.Error("cache should satisfy the read without hitting the service")
		}
	})

	t.Run("正常系: キャッシュミスはサービスへフォールバックする", func(t *testing.T) {
		// 起動後に作成された台帳はキャッシュに載らないが、GETできること
		service := &mockLedgerService{
			getFn: func(ctx context.Context, id string) (*model.Ledger, error) {
				return &model.Ledger{ID: id, Name: "created-after-boot"}, nil
			},
		}
		h := NewLedgerHandler(service, &mockLedgerCache{})

		req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/ledgers/l-new", nil), "id", "l-new")
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp ledgerResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Name != "created-after-boot" {
			t.Errorf("name = %q, want created-after-boot", resp.Name)
		}
	})

	t.Run("異常系: キャッシュにもDBにも無い台帳は404", func(t *testing.T) {
		service := &mockLedgerService{
			getFn: func(ctx context.Context, id string) (*model.Ledger, error) {
				return nil, model.NewLedgerNotFoundError(id)
			},
		}
		h := NewLedgerHandler(service, &mockLedgerCache{})

		req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/ledgers/missing", nil), "id", "missing")
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("正常系: キャッシュなしはサービス経由", func(t *testing.T) {
		service := &mockLedgerService{
			getFn: func(ctx context.Context, id string) (*model.Ledger, error) {
				return &model.Ledger{ID: id, Name: "from-db"}, nil
			},
		}
		h := NewLedgerHandler(service, nil)

		req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/api/ledgers/l-2", nil), "id", "l-2")
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		var resp ledgerResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Name != "from-db" {
			t.Errorf("name = %q, want from-db", resp.Name)
		}
	})
}

func TestLedgerHandler_ListLedgers(t *testing.T) {
	cache := &mockLedgerCache{
		allFn: func() []*model.Ledger {
			return []*model.Ledger{
				{ID: "a", Name: "Alpha"},
				{ID: "b", Name: "Beta"},
			}
		},
	}
	h := NewLedgerHandler(&mockLedgerService{}, cache)

	req := httptest.NewRequest(http.MethodGet, "/api/ledgers", nil)
	rec := httptest.NewRecorder()
	h.ListLedgers(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var resp []ledgerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("len = %d, want 2", len(resp))
	}
}

func TestLedgerHandler_RenameLedger(t *testing.T) {
	t.Run("正常系: 名前を変更する", func(t *testing.T) {
		var gotID, gotName string
		service := &mockLedgerService{
			renameFn: func(ctx context.Context, id, name string) error {
				gotID, gotName = id, name
				return nil
			},
		}
		h := NewLedgerHandler(service, nil)

		body := bytes.NewBufferString(`{"name":"Renamed"}`)
		req := withChiURLParam(httptest.NewRequest(http.MethodPatch, "/api/ledgers/l-1", body), "id", "l-1")
		rec := httptest.NewRecorder()
		h.RenameLedger(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if gotID != "l-1" || gotName != "Renamed" {
			t.Errorf("Rename called with (%q, %q)", gotID, gotName)
		}
	})

	t.Run("異常系: 競合は409", func(t *testing.T) {
		service := &mockLedgerService{
			renameFn: func(ctx context.Context, id, name string) error {
				return model.NewUpdateConflictError(id)
			},
		}
		h := NewLedgerHandler(service, nil)

		body := bytes.NewBufferString(`{"name":"x"}`)
		req := withChiURLParam(httptest.NewRequest(http.MethodPatch, "/api/ledgers/l-1", body), "id", "l-1")
		rec := httptest.NewRecorder()
		h.RenameLedger(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}

func TestLedgerHandler_DeleteLedger(t *testing.T) {
	service := &mockLedgerService{}
	h := NewLedgerHandler(service, nil)

	req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/ledgers/l-1", nil), "id", "l-1")
	rec := httptest.NewRecorder()
	h.DeleteLedger(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
