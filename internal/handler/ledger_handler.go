package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/ledgerman/internal/middleware"
	"github.com/hitoshi/ledgerman/internal/model"
)

// LedgerServiceInterface は台帳ハンドラーが必要とするサービスインターフェース。
type LedgerServiceInterface interface {
	// Create は新しい台帳を作成する。名前が空の場合は自動採番する。
	Create(ctx context.Context, name string) (*model.Ledger, error)
	// Get は台帳をIDで取得する。
	Get(ctx context.Context, id string) (*model.Ledger, error)
	// List は全台帳を返す。
	List(ctx context.Context) []*model.Ledger
	// Rename は台帳名を変更する。
	Rename(ctx context.Context, id, name string) error
	// Delete は台帳を削除する。
	Delete(ctx context.Context, id string) error
}

// LedgerCacheInterface は読み取り専用キャッシュのインターフェース。
// GET系エンドポイントで使用し、DBへの問い合わせを避ける。
type LedgerCacheInterface interface {
	// All はキャッシュされた全台帳のスナップショットを返す。
	All() []*model.Ledger
	// ByID はキャッシュから台帳を検索する。
	ByID(id string) (*model.Ledger, bool)
}

// LedgerHandler は台帳管理のHTTPハンドラー。
type LedgerHandler struct {
	service LedgerServiceInterface
	cache   LedgerCacheInterface
}

// NewLedgerHandler はLedgerHandlerを生成する。
// cache が nil でない場合、一覧と詳細の取得はキャッシュから行う。
func NewLedgerHandler(service LedgerServiceInterface, cache LedgerCacheInterface) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		cache:   cache,
	}
}

// createLedgerRequest は台帳作成リクエストのボディ。
type createLedgerRequest struct {
	Name string `json:"name"`
}

// renameLedgerRequest は台帳名変更リクエストのボディ。
type renameLedgerRequest struct {
	Name string `json:"name"`
}

// ledgerResponse は台帳情報のAPIレスポンス。
type ledgerResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified"`
}

// CreateLedger は台帳作成を処理する。
// POST /api/ledgers
func (h *LedgerHandler) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var req createLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	ledger, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toLedgerResponse(ledger))
}

// GetLedger は台帳詳細を取得する。
// GET /api/ledgers/:id
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// キャッシュヒット時はDBへ行かずに返す。キャッシュは起動時の
	// 状態しか持たないため、ミス時はサービスへフォールバックする
	// （起動後に作成された台帳もGETできるように）。
	if h.cache != nil {
		if ledger, ok := h.cache.ByID(id); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(toLedgerResponse(ledger))
			return
		}
	}

	ledger, err := h.service.Get(r.Context(), id)
	if err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toLedgerResponse(ledger))
}

// ListLedgers は台帳の一覧を取得する。
// GET /api/ledgers
func (h *LedgerHandler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	var ledgers []*model.Ledger
	if h.cache != nil {
		ledgers = h.cache.All()
	} else {
		ledgers = h.service.List(r.Context())
	}

	responses := make([]ledgerResponse, 0, len(ledgers))
	for _, ledger := range ledgers {
		responses = append(responses, toLedgerResponse(ledger))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// RenameLedger は台帳名を変更する。
// PATCH /api/ledgers/:id
func (h *LedgerHandler) RenameLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renameLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.service.Rename(r.Context(), id, req.Name); err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteLedger は台帳を削除する。
// DELETE /api/ledgers/:id
func (h *LedgerHandler) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toLedgerResponse はmodel.LedgerからAPIレスポンスに変換する。
func toLedgerResponse(ledger *model.Ledger) ledgerResponse {
	return ledgerResponse{
		ID:           ledger.ID,
		Name:         ledger.Name,
		LastModified: ledger.LastModified,
	}
}
