package model

import "time"

// RoleSet は視聴者のロールをビットフラグで表す。
type RoleSet uint8

const (
	// RoleModerator はチャンネルモデレーターを示す。
	RoleModerator RoleSet = 1 << iota
	// RoleSubscriber はチャンネル購読者を示す。
	RoleSubscriber
	// RoleVIP はVIP視聴者を示す。
	RoleVIP
	// RoleBroadcaster は配信者本人を示す。
	RoleBroadcaster
)

// RoleNone はロールなしを示す。
const RoleNone RoleSet = 0

// Has は指定ロールを全て含む場合にtrueを返す。
func (s RoleSet) Has(r RoleSet) bool {
	return s&r == r
}

// Add は指定ロールを追加したRoleSetを返す。
func (s RoleSet) Add(r RoleSet) RoleSet {
	return s | r
}

// Remove は指定ロールを除いたRoleSetを返す。
func (s RoleSet) Remove(r RoleSet) RoleSet {
	return s &^ r
}

// KarmaMin, KarmaMax はカルマの取りうる範囲。
// 範囲外の値は書き込み時にこの範囲へクランプされる。
const (
	KarmaMin int16 = 0
	KarmaMax int16 = 300
)

// Viewer はチャット視聴者のアカウントを表す。
// 同一の外部IDがプラットフォームごとに1件ずつ存在できるため、
// (ID, Platform) の組が一意キーとなる。
type Viewer struct {
	ID       string
	Platform string
	Name     string
	Roles    RoleSet
	Coins    int64
	Karma    int16
	LastSeen time.Time
	LedgerID string
}

// Identity は視聴者の一意キーを返す。
// プラットフォームをまたいで同じ外部IDが存在しうるため、
// "platform:id" 形式の合成キーを使用する。
func (v *Viewer) Identity() string {
	return v.Platform + ":" + v.ID
}

// DisplayName は視聴者の表示名を返す。
func (v *Viewer) DisplayName() string {
	return v.Name
}

// ClampKarma は値を[KarmaMin, KarmaMax]の範囲に収めて返す。
func ClampKarma(karma int16) int16 {
	if karma < KarmaMin {
		return KarmaMin
	}
	if karma > KarmaMax {
		return KarmaMax
	}
	return karma
}
