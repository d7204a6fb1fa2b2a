// Package bootstrap は起動時の認証情報の実体化を提供する。
// 環境変数で渡されたサービスアカウントJSONをファイルに書き出し、
// そのパスを下流のSDK初期化処理へ返す。
package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCredentialsPath は認証情報ファイルのデフォルトの書き出し先。
const DefaultCredentialsPath = "/data/firebase-credentials.json"

// 環境変数名。
const (
	// EnvCredentials はサービスアカウントJSONそのものを保持する環境変数。
	EnvCredentials = "FIREBASE_CREDENTIALS"
	// EnvCredentialsFile は書き出し先パスを上書きする環境変数。
	EnvCredentialsFile = "FIREBASE_CREDENTIALS_FILE"
)

// Materialize は環境変数FIREBASE_CREDENTIALSのJSONを検証し、
// ファイルに書き出してそのパスを返す。
// 書き込みは一時ファイル+リネームで行うため、失敗時に壊れた
// 認証情報ファイルが残ることはない。プロセスの環境変数は変更しない。
func Materialize() (string, error) {
	blob, ok := os.LookupEnv(EnvCredentials)
	if !ok || blob == "" {
		return "", fmt.Errorf("環境変数%sが設定されていません", EnvCredentials)
	}

	path := os.Getenv(EnvCredentialsFile)
	if path == "" {
		path = DefaultCredentialsPath
	}

	return write(path, []byte(blob))
}

// write はJSONとして妥当性を検証してからアトミックにファイルへ書き出す。
func write(path string, blob []byte) (string, error) {
	if !json.Valid(blob) {
		return "", fmt.Errorf("認証情報が不正なJSONです")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("認証情報ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return "", fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("認証情報の書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("認証情報の書き込みに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("認証情報の権限設定に失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("認証情報ファイルの配置に失敗しました: %w", err)
	}

	return path, nil
}
