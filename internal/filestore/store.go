package filestore

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hitoshi/ledgerman/internal/model"
)

// BackupSuffix は直前の内容を退避するバックアップファイルの拡張子。
const BackupSuffix = ".bck"

// StoreMetrics はロックアウト中パスへの書き込み拒否を記録するインターフェース。
type StoreMetrics interface {
	RecordBlockedWrite()
}

// Store はキー（パス）からblobへの永続化ハンドラ。
// パスごとの状態はUnblocked→Blockedの一方向でのみ遷移し、
// プロセス生存中にBlockedから戻ることはない。
type Store struct {
	serializer Serializer
	metrics    StoreMetrics // nilの場合は記録しない

	mu      sync.Mutex // ファイルシステムへの並行書き込みとblocked集合を保護する
	blocked map[string]struct{}

	wg sync.WaitGroup
}

// NewStore はStoreを生成する。metricsはnil可。
func NewStore(serializer Serializer, metrics StoreMetrics) *Store {
	return &Store{
		serializer: serializer,
		metrics:    metrics,
		blocked:    make(map[string]struct{}),
	}
}

// Read はファイルの内容をvへ復元し、成功した場合にtrueを返す。
// ファイルが存在しない場合はロックアウトせずfalseを返す。
// それ以外の失敗（読み込みエラー・破損）はログに記録し、
// 該当パスを書き込みロックアウトしてfalseを返す。
func (s *Store) Read(path string, v any) bool {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// 初回起動などで未作成なのは正常系
		return false
	}
	if err != nil {
		slog.Error("ファイルの読み込みに失敗しました。書き込みを無効化します",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		s.Block(path)
		return false
	}

	if err := s.serializer.Unmarshal(data, v); err != nil {
		corrupted := model.NewFileCorruptedError(path, err)
		slog.Error("ファイルが破損しています。書き込みを無効化します",
			slog.String("path", path),
			slog.String("error", corrupted.Error()),
		)
		s.Block(path)
		return false
	}

	return true
}

// Write は値を直列化し、pathへアトミックに書き込む。
// 直前の内容は同一ディレクトリに.bckとして退避される。
// 手順のいずれかが失敗した場合、書き込み先のファイルは一切変更されず、
// 該当パスは書き込みロックアウトされる。
// ロックアウト中のパスへの書き込みはディスクに触れずに拒否する。
func (s *Store) Write(path string, v any) error {
	path = filepath.Clean(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, blocked := s.blocked[path]; blocked {
		if s.metrics != nil {
			s.metrics.RecordBlockedWrite()
		}
		writeErr := model.NewWriteBlockedError(path)
		slog.Warn("ロックアウト中のパスへの書き込みを拒否しました",
			slog.String("path", path),
		)
		return writeErr
	}

	data, err := s.serializer.Marshal(v)
	if err != nil {
		s.blocked[path] = struct{}{}
		slog.Error("値の直列化に失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewBackendError("serialize "+path, err)
	}

	// 1. 同一ディレクトリに一時ファイルを作成する
	//    （同一ファイルシステム上でないとリネームがアトミックにならない）
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		s.blocked[path] = struct{}{}
		slog.Error("一時ファイルの作成に失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewBackendError("create temp for "+path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		s.blocked[path] = struct{}{}
		slog.Error("一時ファイルへの書き込みに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewBackendError("write temp for "+path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		s.blocked[path] = struct{}{}
		return model.NewBackendError("close temp for "+path, err)
	}

	// 2. 既存の内容を.bckに退避する（初回書き込み時は何もしない）
	if prior, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+BackupSuffix, prior, 0644); err != nil {
			os.Remove(tmpPath)
			s.blocked[path] = struct{}{}
			slog.Error("バックアップの作成に失敗しました",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return model.NewBackendError("backup "+path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tmpPath)
		s.blocked[path] = struct{}{}
		return model.NewBackendError("read prior contents of "+path, err)
	}

	// 3. アトミックリネームで差し替える。
	//    途中で電源が落ちても、古いファイルか新しいファイルのどちらかが残る。
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		s.blocked[path] = struct{}{}
		slog.Error("アトミックリネームに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewBackendError("rename temp over "+path, err)
	}

	return nil
}

// WriteAsync はWriteをバックグラウンドで実行する。
// 挙動はWriteと同一で、失敗はログに記録される。
// 完了を待つ場合はWaitを呼ぶこと。
func (s *Store) WriteAsync(path string, v any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Write(path, v); err != nil {
			slog.Error("非同期書き込みに失敗しました",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ReadAsync はReadをバックグラウンドで実行し、結果をチャネルで返す。
// 挙動はReadと同一。vは結果受信まで他から参照しないこと。
func (s *Store) ReadAsync(path string, v any) <-chan bool {
	result := make(chan bool, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result <- s.Read(path, v)
	}()
	return result
}

// Wait は進行中の非同期処理が全て完了するまで待機する。
func (s *Store) Wait() {
	s.wg.Wait()
}

// IsBlocked は指定パスが書き込みロックアウト中かどうかを返す。
func (s *Store) IsBlocked(path string) bool {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, blocked := s.blocked[path]
	return blocked
}

// Block は指定パスを書き込みロックアウトする（冪等）。
// 新たにロックアウトした場合にtrue、既にロックアウト済みの場合はfalseを返す。
// 所有側サブシステムが危険を検知した際に事前にパスを無効化する用途にも使う。
func (s *Store) Block(path string) bool {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, blocked := s.blocked[path]; blocked {
		return false
	}
	s.blocked[path] = struct{}{}
	return true
}
