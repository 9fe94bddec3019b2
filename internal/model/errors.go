package model

import (
	"errors"
	"fmt"
)

// StoreError はデータ層の統一エラーフォーマットを表す。
// 呼び出し側に表示する原因カテゴリと対処方法を含む。
// ドライバ例外はコンポーネント境界でこの型に変換され、
// 生の例外が境界を越えることはない。
type StoreError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, ledger, viewer, storage, system
	Action   string // 呼び出し側向け対処方法
	cause    error  // 元となったエラー（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元となったエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeLedgerNotFound   = "LEDGER_NOT_FOUND"
	ErrCodeViewerNotFound   = "VIEWER_NOT_FOUND"
	ErrCodeUpdateConflict   = "UPDATE_CONFLICT"
	ErrCodeBackendFailure   = "BACKEND_FAILURE"
	ErrCodeFileCorrupted    = "FILE_CORRUPTED"
	ErrCodeWriteBlocked     = "WRITE_BLOCKED"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *StoreError {
	return &StoreError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力値を確認してから再度お試しください。",
	}
}

// NewLedgerNotFoundError は台帳未検出エラーを生成する。
func NewLedgerNotFoundError(key string) *StoreError {
	return &StoreError{
		Code:     ErrCodeLedgerNotFound,
		Message:  fmt.Sprintf("指定された台帳が見つかりません: %s", key),
		Category: "ledger",
		Action:   "台帳のIDまたは名前を確認してください。",
	}
}

// NewViewerNotFoundError は視聴者未検出エラーを生成する。
func NewViewerNotFoundError(id, platform string) *StoreError {
	return &StoreError{
		Code:     ErrCodeViewerNotFound,
		Message:  fmt.Sprintf("指定された視聴者が見つかりません: %s (%s)", id, platform),
		Category: "viewer",
		Action:   "視聴者IDとプラットフォームを確認してください。",
	}
}

// NewUpdateConflictError は楽観的排他制御の競合エラーを生成する。
// 読み取り後に他の書き込みが先行した場合に発生する。
func NewUpdateConflictError(id string) *StoreError {
	return &StoreError{
		Code:     ErrCodeUpdateConflict,
		Message:  fmt.Sprintf("台帳は読み取り後に他の処理によって更新されています: %s", id),
		Category: "ledger",
		Action:   "最新の状態を再取得してから、再度更新してください。",
	}
}

// NewBackendError はストレージ層の障害エラーを生成する。
// 元のドライバエラーを保持し、errors.Isでの検査を可能にする。
func NewBackendError(op string, cause error) *StoreError {
	return &StoreError{
		Code:     ErrCodeBackendFailure,
		Message:  fmt.Sprintf("ストレージ操作に失敗しました: %s: %v", op, cause),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}

// NewFileCorruptedError はファイル破損エラーを生成する。
// このエラーの発生後、該当パスへの書き込みはロックアウトされる。
func NewFileCorruptedError(path string, cause error) *StoreError {
	return &StoreError{
		Code:     ErrCodeFileCorrupted,
		Message:  fmt.Sprintf("ファイルを読み込めませんでした: %s: %v", path, cause),
		Category: "storage",
		Action:   "ファイルの内容を確認し、プロセスを再起動してください。",
		cause:    cause,
	}
}

// NewWriteBlockedError は書き込みロックアウト中のエラーを生成する。
func NewWriteBlockedError(path string) *StoreError {
	return &StoreError{
		Code:     ErrCodeWriteBlocked,
		Message:  fmt.Sprintf("このパスへの書き込みは無効化されています: %s", path),
		Category: "storage",
		Action:   "データ破損を防ぐため書き込みを停止しています。プロセスを再起動してください。",
	}
}

// hasCode はエラーが指定コードのStoreErrorかどうかを判定する。
func hasCode(err error, code string) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound はエラーが未検出系かどうかを判定する。
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeLedgerNotFound) || hasCode(err, ErrCodeViewerNotFound)
}

// IsConflict はエラーが楽観的排他制御の競合かどうかを判定する。
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeUpdateConflict)
}

// IsValidation はエラーが入力検証エラーかどうかを判定する。
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidationFailed)
}
