package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testServiceAccountJSON はテスト用のサービスアカウントJSONを生成するヘルパー関数。
func testServiceAccountJSON(t *testing.T) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("秘密鍵のエンコードに失敗: %v", err)
	}
	pemStr := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	data, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   "checkmate-test",
		"client_email": "robot@checkmate-test.iam.gserviceaccount.com",
		"private_key":  pemStr,
	})
	if err != nil {
		t.Fatalf("サービスアカウントJSONの生成に失敗: %v", err)
	}
	return data
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("認証情報ファイルから読み込める", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "credentials.json")
		if err := os.WriteFile(path, testServiceAccountJSON(t), 0o600); err != nil {
			t.Fatalf("認証情報ファイルの作成に失敗: %v", err)
		}

		svc, err := Load(path)
		if err != nil {
			t.Fatalf("認証情報の読み込みに失敗: %v", err)
		}
		if got := svc.ProjectID(); got != "checkmate-test" {
			t.Errorf("project_id: got %q, want checkmate-test", got)
		}
	})

	t.Run("ファイルが存在しない場合はエラー", func(t *testing.T) {
		t.Parallel()
		if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Error("ファイル欠落でエラーが返りませんでした")
		}
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("種別がservice_accountでない場合はエラー", func(t *testing.T) {
		t.Parallel()
		data := strings.Replace(string(testServiceAccountJSON(t)), "service_account", "authorized_user", 1)
		if _, err := New([]byte(data)); err == nil {
			t.Error("不正な種別でエラーが返りませんでした")
		}
	})

	t.Run("project_idが欠けている場合はエラー", func(t *testing.T) {
		t.Parallel()
		data := strings.Replace(string(testServiceAccountJSON(t)), "checkmate-test", "", 1)
		if _, err := New([]byte(data)); err == nil {
			t.Error("project_id欠落でエラーが返りませんでした")
		}
	})

	t.Run("秘密鍵が不正な場合はエラー", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   "checkmate-test",
			"client_email": "robot@checkmate-test.iam.gserviceaccount.com",
			"private_key":  "これはPEMではない",
		})
		if err != nil {
			t.Fatalf("JSONの生成に失敗: %v", err)
		}
		if _, err := New(data); err == nil {
			t.Error("不正な秘密鍵でエラーが返りませんでした")
		}
	})

	t.Run("不正なJSONはエラー", func(t *testing.T) {
		t.Parallel()
		if _, err := New([]byte(`{"type":`)); err == nil {
			t.Error("不正なJSONでエラーが返りませんでした")
		}
	})
}

func TestMintAndVerify(t *testing.T) {
	t.Parallel()

	t.Run("発行したトークンを検証できる", func(t *testing.T) {
		t.Parallel()
		svc, err := New(testServiceAccountJSON(t))
		if err != nil {
			t.Fatalf("Serviceの生成に失敗: %v", err)
		}

		token, err := svc.Mint("user-1", "user1@example.com")
		if err != nil {
			t.Fatalf("トークンの発行に失敗: %v", err)
		}

		claims, err := svc.Verify(token)
		if err != nil {
			t.Fatalf("トークンの検証に失敗: %v", err)
		}
		if claims.UserID != "user-1" {
			t.Errorf("user_id: got %q, want user-1", claims.UserID)
		}
		if claims.Email != "user1@example.com" {
			t.Errorf("email: got %q, want user1@example.com", claims.Email)
		}
	})

	t.Run("別の鍵で発行されたトークンは拒否される", func(t *testing.T) {
		t.Parallel()
		svc1, err := New(testServiceAccountJSON(t))
		if err != nil {
			t.Fatalf("Serviceの生成に失敗: %v", err)
		}
		svc2, err := New(testServiceAccountJSON(t))
		if err != nil {
			t.Fatalf("Serviceの生成に失敗: %v", err)
		}

		token, err := svc1.Mint("user-1", "user1@example.com")
		if err != nil {
			t.Fatalf("トークンの発行に失敗: %v", err)
		}
		if _, err := svc2.Verify(token); err == nil {
			t.Error("別の鍵のトークンでエラーが返りませんでした")
		}
	})

	t.Run("改ざんされたトークンは拒否される", func(t *testing.T) {
		t.Parallel()
		svc, err := New(testServiceAccountJSON(t))
		if err != nil {
			t.Fatalf("Serviceの生成に失敗: %v", err)
		}

		token, err := svc.Mint("user-1", "user1@example.com")
		if err != nil {
			t.Fatalf("トークンの発行に失敗: %v", err)
		}
		if _, err := svc.Verify(token + "x"); err == nil {
			t.Error("改ざんされたトークンでエラーが返りませんでした")
		}
	})
}
