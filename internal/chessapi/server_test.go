package chessapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	chessdb "github.com/nao1215/checkmate/internal/chessapi/db"
	"github.com/nao1215/checkmate/internal/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testIdentityOnce sync.Once
	testIdentitySvc  *identity.Service
	testIdentityErr  error
)

// testIdentity はテスト用のidentityサービスを返す。
// RSA鍵の生成が重いため、パッケージ内で1度だけ生成して使い回す。
func testIdentity(t *testing.T) *identity.Service {
	t.Helper()

	testIdentityOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			testIdentityErr = err
			return
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testIdentityErr = err
			return
		}
		pemStr := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

		data, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   "checkmate-test",
			"client_email": "robot@checkmate-test.iam.gserviceaccount.com",
			"private_key":  pemStr,
		})
		if err != nil {
			testIdentityErr = err
			return
		}
		testIdentitySvc, testIdentityErr = identity.New(data)
	})
	if testIdentityErr != nil {
		t.Fatalf("テスト用identityサービスの生成に失敗: %v", testIdentityErr)
	}
	return testIdentitySvc
}

// setupTestServer はテスト用のチェス対局サーバーをインメモリSQLiteで構築する。
// JWTミドルウェアの代わりにX-User-IDヘッダーからユーザーIDを読むスタブを使う。
func setupTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別の実体になるため1接続に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:   router,
		port:     "0",
		queries:  chessdb.New(sqlDB),
		db:       sqlDB,
		identity: testIdentity(t),
		now:      time.Now,
	}

	router.POST("/auth/register", s.handleRegister())

	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	{
		games := api.Group("/games")
		{
			games.POST("", s.handleCreateGame())
			games.GET("", s.handleListGames())
			games.GET("/:id", s.handleGetGame())
			games.POST("/:id/join", s.handleJoinGame())
			games.POST("/:id/moves", s.handleMove())
			games.POST("/:id/resign", s.handleResign())
			games.POST("/:id/draw/offer", s.handleOfferDraw())
			games.POST("/:id/draw/respond", s.handleRespondDraw())
		}
		api.GET("/events", s.handleListEvents())
	}

	controller := router.Group("/controller")
	{
		controller.POST("/register", s.handleRegisterController())
		controller.POST("/poll", s.handlePoll())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chessapi"})
	})

	return s, router
}

// createTestUser はテスト用にユーザーをDBに直接挿入するヘルパー関数。
func createTestUser(t *testing.T, s *Server, id, email string) {
	t.Helper()
	err := s.queries.CreateUser(context.Background(), chessdb.CreateUserParams{
		ID:          id,
		Email:       email,
		DisplayName: id,
	})
	if err != nil {
		t.Fatalf("テスト用ユーザーの作成に失敗: %v", err)
	}
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをマップにデシリアライズするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return body
}

// parseJSONArray はレスポンスボディを配列にデシリアライズするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return body
}

func TestHandleRegister(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーを登録してトークンを受け取れる", func(t *testing.T) {
		t.Parallel()
		s, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/auth/register", "", map[string]string{
			"email":        "alice@example.com",
			"display_name": "Alice",
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
		}

		body := parseJSON(t, w)
		if body["email"] != "alice@example.com" {
			t.Errorf("email = %v, want alice@example.com", body["email"])
		}
		if body["id"] == "" || body["id"] == nil {
			t.Error("idが空です")
		}

		// 発行されたトークンが検証できること
		token, _ := body["token"].(string)
		claims, err := s.identity.Verify(token)
		if err != nil {
			t.Fatalf("トークンの検証に失敗: %v", err)
		}
		if claims.UserID != body["id"] {
			t.Errorf("トークンのuser_id = %q, want %v", claims.UserID, body["id"])
		}
	})

	t.Run("メールアドレスの重複は409", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "bob@example.com",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}

		w = doRequest(router, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "bob@example.com",
		})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	t.Run("不正なメールアドレスは400", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "メールアドレスではない",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestHandleListEvents(t *testing.T) {
	t.Parallel()

	t.Run("状態変更がイベントとして記録される", func(t *testing.T) {
		t.Parallel()
		s, router := setupTestServer(t)
		createTestUser(t, s, "user-1", "u1@example.com")

		w := doRequest(router, http.MethodPost, "/api/v1/games", "user-1", map[string]any{
			"player1_id": "user-1",
			"player2_id": "OPEN",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("対局作成に失敗: %d (body=%s)", w.Code, w.Body.String())
		}

		w = doRequest(router, http.MethodGet, "/api/v1/events", "user-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		events := parseJSONArray(t, w)
		if len(events) != 1 {
			t.Fatalf("イベント数 = %d, want 1", len(events))
		}
		if events[0]["event_type"] != "GameCreated" {
			t.Errorf("event_type = %v, want GameCreated", events[0]["event_type"])
		}
		if events[0]["aggregate_type"] != "Game" {
			t.Errorf("aggregate_type = %v, want Game", events[0]["aggregate_type"])
		}
	})

	t.Run("limitが不正な場合は400", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/events?limit=-1", "user-1", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	_, router := setupTestServer(t)

	w := doRequest(router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}

	body := parseJSON(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
