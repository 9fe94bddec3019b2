package app

import (
	"path/filepath"
	"time"

	"github.com/hitoshi/ledgerman/internal/filestore"
	"github.com/hitoshi/ledgerman/internal/model"
)

// stateFileName はサーバー状態スナップショットのファイル名（拡張子なし）。
const stateFileName = "server_state"

// serverState はシャットダウン時にディスクへ保存するサーバー状態。
// 再起動後にオンライン視聴者の観測状態を引き継ぐために使用する。
type serverState struct {
	ShutdownAt    time.Time        `json:"shutdown_at" yaml:"shutdown_at"`
	OnlineViewers []viewerSnapshot `json:"online_viewers" yaml:"online_viewers"`
}

// viewerSnapshot はオンライン視聴者のシリアライズ表現。
type viewerSnapshot struct {
	ID       string    `json:"id" yaml:"id"`
	Platform string    `json:"platform" yaml:"platform"`
	Name     string    `json:"name" yaml:"name"`
	Roles    uint8     `json:"roles" yaml:"roles"`
	Coins    int64     `json:"coins" yaml:"coins"`
	Karma    int16     `json:"karma" yaml:"karma"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
	LedgerID string    `json:"ledger_id,omitempty" yaml:"ledger_id,omitempty"`
}

// statePath はデータディレクトリ内のサーバー状態ファイルのパスを返す。
func statePath(dataDir, format string) string {
	ext := "json"
	if format == "yaml" || format == "yml" {
		ext = "yaml"
	}
	return filepath.Join(dataDir, stateFileName+"."+ext)
}

// loadServerState はサーバー状態ファイルを読み込む。
// ファイルが存在しない、または破損している場合はnilを返す。
func loadServerState(store *filestore.Store, path string) *serverState {
	var state serverState
	if !store.Read(path, &state) {
		return nil
	}
	return &state
}

// saveServerState はサーバー状態をディスクへ保存する。
func saveServerState(store *filestore.Store, path string, online []*model.Viewer) error {
	state := serverState{
		ShutdownAt:    time.Now().UTC(),
		OnlineViewers: make([]viewerSnapshot, 0, len(online)),
	}
	for _, v := range online {
		state.OnlineViewers = append(state.OnlineViewers, viewerSnapshot{
			ID:       v.ID,
			Platform: v.Platform,
			Name:     v.Name,
			Roles:    uint8(v.Roles),
			Coins:    v.Coins,
			Karma:    v.Karma,
			LastSeen: v.LastSeen,
			LedgerID: v.LedgerID,
		})
	}
	return store.Write(path, &state)
}

// toViewers はスナップショットをドメインモデルへ変換する。
func (s *serverState) toViewers() []*model.Viewer {
	viewers := make([]*model.Viewer, 0, len(s.OnlineViewers))
	for _, snap := range s.OnlineViewers {
		viewers = append(viewers, &model.Viewer{
			ID:       snap.ID,
			Platform: snap.Platform,
			Name:     snap.Name,
			Roles:    model.RoleSet(snap.Roles),
			Coins:    snap.Coins,
			Karma:    snap.Karma,
			LastSeen: snap.LastSeen,
			LedgerID: snap.LedgerID,
		})
	}
	return viewers
}
