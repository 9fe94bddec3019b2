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

// ViewerServiceInterface は視聴者ハンドラーが必要とするサービスインターフェース。
type ViewerServiceInterface interface {
	// EnsureViewer は視聴者を登録または更新し、オンライン一覧に載せる。
	EnsureViewer(ctx context.Context, viewer *model.Viewer) error
	// OnlineViewers は現在オンラインの視聴者一覧を返す。
	OnlineViewers() []*model.Viewer
	// MarkOffline は視聴者をオンライン一覧から外す。
	MarkOffline(ctx context.Context, id, platform string) bool
	// AwardCoins はカルマ補正付きでコインを付与し、付与後残高を返す。
	AwardCoins(ctx context.Context, id, platform string, amount int64) (int64, error)
	// SpendCoins はコインを消費し、消費後残高を返す。
	SpendCoins(ctx context.Context, id, platform string, amount int64) (int64, error)
	// AdjustKarma はカルマを増減する。結果は範囲内にクランプされる。
	AdjustKarma(ctx context.Context, id, platform string, delta int16) error
	// AssignToLedger は視聴者を台帳に割り当てる。
	AssignToLedger(ctx context.Context, id, platform, ledgerID string) error
	// Leaderboard は台帳内のコイン上位視聴者を返す。
	Leaderboard(ctx context.Context, ledgerID string) ([]*model.Viewer, error)
}

// ViewerHandler は視聴者管理のHTTPハンドラー。
type ViewerHandler struct {
	service ViewerServiceInterface
}

// NewViewerHandler はViewerHandlerを生成する。
func NewViewerHandler(service ViewerServiceInterface) *ViewerHandler {
	return &ViewerHandler{service: service}
}

// ensureViewerRequest は視聴者登録リクエストのボディ。
type ensureViewerRequest struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Name     string `json:"name"`
	Roles    uint8  `json:"roles"`
}

// coinsRequest はコイン付与・消費リクエストのボディ。
type coinsRequest struct {
	Amount int64 `json:"amount"`
}

// karmaRequest はカルマ増減リクエストのボディ。
type karmaRequest struct {
	Delta int16 `json:"delta"`
}

// assignLedgerRequest は台帳割り当てリクエストのボディ。
type assignLedgerRequest struct {
	LedgerID string `json:"ledger_id"`
}

// viewerResponse は視聴者情報のAPIレスポンス。
type viewerResponse struct {
	ID       string    `json:"id"`
	Platform string    `json:"platform"`
	Name     string    `json:"name"`
	Roles    uint8     `json:"roles"`
	Coins    int64     `json:"coins"`
	Karma    int16     `json:"karma"`
	LastSeen time.Time `json:"last_seen"`
	LedgerID string    `json:"ledger_id,omitempty"`
}

// balanceResponse はコイン操作後の残高レスポンス。
type balanceResponse struct {
	Coins int64 `json:"coins"`
}

// EnsureViewer は視聴者の登録・更新を処理する。
// PUT /api/viewers
func (h *ViewerHandler) EnsureViewer(w http.ResponseWriter, r *http.Request) {
	var req ensureViewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	viewer := &model.Viewer{
		ID:       req.ID,
		Platform: req.Platform,
		Name:     req.Name,
		Roles:    model.RoleSet(req.Roles),
	}
	if err := h.service.EnsureViewer(r.Context(), viewer); err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toViewerResponse(viewer))
}

// ListOnline は現在オンラインの視聴者一覧を返す。
// GET /api/viewers/online
func (h *ViewerHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	viewers := h.service.OnlineViewers()

	responses := make([]viewerResponse, 0, len(viewers))
	for _, v := range viewers {
		responses = append(responses, toViewerResponse(v))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// MarkOffline は視聴者をオンライン一覧から外す。
// DELETE /api/viewers/:platform/:id/online
func (h *ViewerHandler) MarkOffline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	platform := chi.URLParam(r, "platform")

	h.service.MarkOffline(r.Context(), id, platform)
	w.WriteHeader(http.StatusNoContent)
}

// AwardCoins はコイン付与を処理する。
// POST /api/viewers/:platform/:id/coins/award
func (h *ViewerHandler) AwardCoins(w http.ResponseWriter, r *http.Request) {
	h.applyCoins(w, r, h.service.AwardCoins)
}

// SpendCoins はコイン消費を処理する。
// POST /api/viewers/:platform/:id/coins/spend
func (h *ViewerHandler) SpendCoins(w http.ResponseWriter, r *http.Request) {
	h.applyCoins(w, r, h.service.SpendCoins)
}

// applyCoins はコイン付与と消費で共通の処理を行う。
func (h *ViewerHandler) applyCoins(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string, int64) (int64, error)) {
	id := chi.URLParam(r, "id")
	platform := chi.URLParam(r, "platform")

	var req coinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	coins, err := op(r.Context(), id, platform, req.Amount)
	if err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balanceResponse{Coins: coins})
}

// AdjustKarma はカルマの増減を処理する。
// POST /api/viewers/:platform/:id/karma
func (h *ViewerHandler) AdjustKarma(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	platform := chi.URLParam(r, "platform")

	var req karmaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.service.AdjustKarma(r.Context(), id, platform, req.Delta); err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AssignToLedger は視聴者の台帳割り当てを処理する。
// PUT /api/viewers/:platform/:id/ledger
func (h *ViewerHandler) AssignToLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	platform := chi.URLParam(r, "platform")

	var req assignLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteStoreError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := h.service.AssignToLedger(r.Context(), id, platform, req.LedgerID); err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard は台帳内のコイン上位視聴者を返す。
// GET /api/ledgers/:id/leaderboard
func (h *ViewerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ledgerID := chi.URLParam(r, "id")

	viewers, err := h.service.Leaderboard(r.Context(), ledgerID)
	if err != nil {
		middleware.WriteStoreError(w, err)
		return
	}

	responses := make([]viewerResponse, 0, len(viewers))
	for _, v := range viewers {
		responses = append(responses, toViewerResponse(v))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// toViewerResponse はmodel.ViewerからAPIレスポンスに変換する。
func toViewerResponse(v *model.Viewer) viewerResponse {
	return viewerResponse{
		ID:       v.ID,
		Platform: v.Platform,
		Name:     v.Name,
		Roles:    uint8(v.Roles),
		Coins:    v.Coins,
		Karma:    v.Karma,
		LastSeen: v.LastSeen,
		LedgerID: v.LedgerID,
	}
}
