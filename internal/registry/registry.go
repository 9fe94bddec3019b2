// Package registry はIDをキーとするスレッドセーフな汎用コレクションを提供する。
//
// 3つのバリアントが同一の読み取り契約を共有する:
//   - Frozen: 構築後は読み取り専用。ロックなしで並行読み取りできる。
//   - Mutable: 書き込みは単一の論理ライターを前提とし、読み取りは並行に実行できる。
//   - Synchronised: 複数goroutineからの並行Register/Unregister/Getを内部で直列化する。
//
// 不在や重複は頻繁に起こりうる正常系のため、エラーではなくbool/ゼロ値で通知する。
package registry

import "sort"

// Identifiable はレジストリに登録できるエンティティの契約。
// IDは生存中のエントリ間で一意でなければならない。
type Identifiable interface {
	// Identity は一意なIDを返す。
	Identity() string
	// DisplayName は表示名を返す。
	DisplayName() string
}

// Registry は全バリアント共通の読み取り操作。
type Registry[T Identifiable] interface {
	// Get は指定IDのエントリを返す。見つからない場合は (ゼロ値, false) を返す。
	Get(id string) (T, bool)

	// AllRegistrants はその時点のスナップショットをID昇順で返す。
	// 返されたスライスは以降のレジストリ変更の影響を受けない。
	AllRegistrants() []T
}

// Writable は書き込み操作を持つバリアント（Mutable/Synchronised）の契約。
type Writable[T Identifiable] interface {
	Registry[T]

	// Register はエントリを登録する。同一IDが既に存在する場合はfalseを返し、
	// 既存エントリは変更しない。
	Register(item T) bool

	// Unregister は指定IDのエントリを削除する。存在しない場合はfalseを返す。
	Unregister(id string) bool
}

// checkEntry はインターフェース充足のコンパイル時検査用。
type checkEntry struct{}

func (c *checkEntry) Identity() string    { return "" }
func (c *checkEntry) DisplayName() string { return "" }

// snapshot はマップからID昇順のスライスを作る。
func snapshot[T Identifiable](entries map[string]T) []T {
	items := make([]T, 0, len(entries))
	for _, item := range entries {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Identity() < items[j].Identity()
	})
	return items
}
