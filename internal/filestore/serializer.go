// Package filestore はローカルディスクへの破損耐性のあるファイル永続化を提供する。
//
// 書き込みは同一ディレクトリ内の一時ファイルへ直列化してからアトミックに
// リネームするため、途中で失敗しても書き込み先が切り詰められることはない。
// 読み込み失敗（破損）を検出したパスは書き込みロックアウトされ、
// プロセス再起動までそのパスへの書き込みを拒否してデータ損失の拡大を防ぐ。
package filestore

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Serializer は保存形式ごとの直列化処理を抽象化する。
type Serializer interface {
	// Marshal は値をバイト列へ直列化する。
	Marshal(v any) ([]byte, error)
	// Unmarshal はバイト列を値へ復元する。
	Unmarshal(data []byte, v any) error
}

// JSONSerializer はJSON形式のSerializer実装。
// 人間が確認しやすいようインデント付きで出力する。
type JSONSerializer struct{}

// Marshal は値をインデント付きJSONへ直列化する。
func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Unmarshal はJSONバイト列を値へ復元する。
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// YAMLSerializer はYAML形式のSerializer実装。
type YAMLSerializer struct{}

// Marshal は値をYAMLへ直列化する。
func (YAMLSerializer) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal はYAMLバイト列を値へ復元する。
func (YAMLSerializer) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// NewSerializer はフォーマット名からSerializerを生成する。
// サポート外のフォーマットはエラーを返す。
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case "json", "":
		return JSONSerializer{}, nil
	case "yaml", "yml":
		return YAMLSerializer{}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// compile-time interface checks
var (
	_ Serializer = JSONSerializer{}
	_ Serializer = YAMLSerializer{}
)
