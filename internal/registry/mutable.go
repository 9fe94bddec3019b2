package registry

import "sync/atomic"

// Mutable は単一の論理ライターを前提とするレジストリ。
// 書き込みはコピーオンライトでスナップショットを差し替えるため、
// 読み取り側はロックなしで常に一貫した状態を観測する。
// 複数goroutineから書き込む場合は呼び出し側で直列化すること。
// 書き込みが読み取りに比べて十分少ない用途を想定している。
type Mutable[T Identifiable] struct {
	entries atomic.Pointer[map[string]T]
}

// NewMutable は空のMutableレジストリを生成する。
func NewMutable[T Identifiable]() *Mutable[T] {
	r := &Mutable[T]{}
	empty := make(map[string]T)
	r.entries.Store(&empty)
	return r
}

// Get は指定IDのエントリを返す。見つからない場合は (ゼロ値, false) を返す。
func (r *Mutable[T]) Get(id string) (T, bool) {
	item, ok := (*r.entries.Load())[id]
	return item, ok
}

// AllRegistrants はその時点のスナップショットをID昇順で返す。
func (r *Mutable[T]) AllRegistrants() []T {
	return snapshot(*r.entries.Load())
}

// Len は登録件数を返す。
func (r *Mutable[T]) Len() int {
	return len(*r.entries.Load())
}

// Register はエントリを登録する。同一IDが既に存在する場合はfalseを返す。
func (r *Mutable[T]) Register(item T) bool {
	current := *r.entries.Load()
	id := item.Identity()
	if _, exists := current[id]; exists {
		return false
	}
	next := make(map[string]T, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[id] = item
	r.entries.Store(&next)
	return true
}

// Unregister は指定IDのエントリを削除する。存在しない場合はfalseを返す。
func (r *Mutable[T]) Unregister(id string) bool {
	current := *r.entries.Load()
	if _, exists := current[id]; !exists {
		return false
	}
	next := make(map[string]T, len(current)-1)
	for k, v := range current {
		if k != id {
			next[k] = v
		}
	}
	r.entries.Store(&next)
	return true
}

// compile-time interface check
var _ Writable[*checkEntry] = (*Mutable[*checkEntry])(nil)
