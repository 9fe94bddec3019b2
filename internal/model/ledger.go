// Package model はドメインモデルを定義する。
package model

import "time"

// Ledger は視聴者の残高・カルマをまとめる台帳を表す。
// IDは生成後に変更されない。LastModifiedは楽観的排他制御の
// マーカーとして使用され、行ごとに単調非減少であることを保証する。
type Ledger struct {
	ID           string
	Name         string
	LastModified time.Time
}

// Identity は台帳の一意なIDを返す。
func (l *Ledger) Identity() string {
	return l.ID
}

// DisplayName は台帳の表示名を返す。
func (l *Ledger) DisplayName() string {
	return l.Name
}
