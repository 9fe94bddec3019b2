package registry

// Frozen は構築後に一切変更されないレジストリ。
// ライターが存在しないため、同期なしで並行読み取りできる。
type Frozen[T Identifiable] struct {
	entries map[string]T
}

// NewFrozen は与えられたエントリからFrozenレジストリを構築する。
// 同一IDが複数ある場合は後勝ちで1件のみ保持する。
func NewFrozen[T Identifiable](items []T) *Frozen[T] {
	entries := make(map[string]T, len(items))
	for _, item := range items {
		entries[item.Identity()] = item
	}
	return &Frozen[T]{entries: entries}
}

// Get は指定IDのエントリを返す。見つからない場合は (ゼロ値, false) を返す。
func (r *Frozen[T]) Get(id string) (T, bool) {
	item, ok := r.entries[id]
	return item, ok
}

// AllRegistrants は全エントリをID昇順で返す。
func (r *Frozen[T]) AllRegistrants() []T {
	return snapshot(r.entries)
}

// Len は登録件数を返す。
func (r *Frozen[T]) Len() int {
	return len(r.entries)
}

// compile-time interface check
var _ Registry[*checkEntry] = (*Frozen[*checkEntry])(nil)
