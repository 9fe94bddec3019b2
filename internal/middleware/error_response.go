// Package middleware はHTTPミドルウェアと共通レスポンス処理を提供する。
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/ledgerman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, storeErr *model.StoreError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     storeErr.Code,
		Message:  storeErr.Message,
		Category: storeErr.Category,
		Action:   storeErr.Action,
	})
}

// WriteStoreError はエラー分類に応じたHTTPステータスで
// エラーレスポンスを書き込む。分類外のエラーは500として扱う。
func WriteStoreError(w http.ResponseWriter, err error) {
	var se *model.StoreError
	if !errors.As(err, &se) {
		WriteInternalServerError(w)
		return
	}

	status := http.StatusInternalServerError
	switch se.Code {
	case model.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case model.ErrCodeLedgerNotFound, model.ErrCodeViewerNotFound:
		status = http.StatusNotFound
	case model.ErrCodeUpdateConflict:
		status = http.StatusConflict
	case model.ErrCodeWriteBlocked:
		status = http.StatusServiceUnavailable
	}

	WriteErrorResponse(w, status, se)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、呼び出し側には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.StoreError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
