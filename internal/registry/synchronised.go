package registry

import "sync"

// Synchronised は複数goroutineからの並行書き込みに対応したレジストリ。
// 構造変更はRWMutexで直列化されるため、同一IDへの並行Registerは
// ちょうど1件だけ成功する。ロックの保持範囲はマップ操作のみで、
// I/Oを跨いで保持することはない。
type Synchronised[T Identifiable] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewSynchronised は空のSynchronisedレジストリを生成する。
func NewSynchronised[T Identifiable]() *Synchronised[T] {
	return &Synchronised[T]{entries: make(map[string]T)}
}

// Get は指定IDのエントリを返す。見つからない場合は (ゼロ値, false) を返す。
func (r *Synchronised[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.entries[id]
	return item, ok
}

// AllRegistrants はその時点のスナップショットをID昇順で返す。
// 返されたスライスは以降のRegister/Unregisterの影響を受けない。
func (r *Synchronised[T]) AllRegistrants() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.entries)
}

// Len は登録件数を返す。
func (r *Synchronised[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Register はエントリを登録する。同一IDが既に存在する場合はfalseを返し、
// 既存エントリは変更しない。
func (r *Synchronised[T]) Register(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := item.Identity()
	if _, exists := r.entries[id]; exists {
		return false
	}
	r.entries[id] = item
	return true
}

// Replace はエントリを登録または差し替える。既存エントリの有無に関わらず
// 単一のロック取得内で完了するため、同一IDへの並行Replaceが
// 古いエントリを残すことはない。
func (r *Synchronised[T]) Replace(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[item.Identity()] = item
}

// Unregister は指定IDのエントリを削除する。存在しない場合はfalseを返す。
func (r *Synchronised[T]) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		return false
	}
	delete(r.entries, id)
	return true
}

// compile-time interface check
var _ Writable[*checkEntry] = (*Synchronised[*checkEntry])(nil)
