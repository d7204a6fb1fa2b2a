// Package chessapi はチェスロボット対局サーバーのHTTP APIを提供する。
//
// ユーザー登録、対局の作成・参加・指し手、ロボット盤コントローラの
// 登録とポーリングを1つのサービスとして提供する。対局の状態はSQLiteに
// JSONドキュメントとして永続化し、すべての状態変更をイベントとして記録する。
package chessapi

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	chessdb "github.com/nao1215/checkmate/internal/chessapi/db"
	"github.com/nao1215/checkmate/internal/game"
	"github.com/nao1215/checkmate/internal/identity"
	"github.com/nao1215/checkmate/pkg/event"
	"github.com/nao1215/checkmate/pkg/middleware"
)

// Server はチェス対局サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *chessdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// identity はAPIトークンの発行・検証を行うサービス。
	identity *identity.Service
	// now は現在時刻を返す関数。テストで時計を差し替えるために持つ。
	now func() time.Time
}

// NewServer は新しいチェス対局サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
func NewServer(port string, ident *identity.Service) (*Server, error) {
	dbPath := os.Getenv("CHESSAPI_DB")
	if dbPath == "" {
		dbPath = "/data/chessapi.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		router.Use(middleware.CORS(strings.Split(origins, ",")))
	}

	s := &Server{
		router:   router,
		port:     port,
		queries:  chessdb.New(sqlDB),
		db:       sqlDB,
		identity: ident,
		now:      time.Now,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ユーザー登録。トークンを持っていない状態で呼ぶため認証の外に置く
	s.router.POST("/auth/register", s.handleRegister())

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.identity.VerifyKey()))
	{
		games := api.Group("/games")
		{
			// 対局作成
			games.POST("", s.handleCreateGame())
			// 参加可能な対局一覧取得
			games.GET("", s.handleListGames())
			// 対局詳細取得
			games.GET("/:id", s.handleGetGame())
			// 対局への参加
			games.POST("/:id/join", s.handleJoinGame())
			// 指し手
			games.POST("/:id/moves", s.handleMove())
			// 投了
			games.POST("/:id/resign", s.handleResign())
			// ドロー提案
			games.POST("/:id/draw/offer", s.handleOfferDraw())
			// ドロー提案への応答
			games.POST("/:id/draw/respond", s.handleRespondDraw())
		}

		// イベント監査ログ
		api.GET("/events", s.handleListEvents())
	}

	// ロボット盤コントローラは登録と生存確認で認証するため認証の外に置く
	controller := s.router.Group("/controller")
	{
		controller.POST("/register", s.handleRegisterController())
		controller.POST("/poll", s.handlePoll())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "chessapi"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name"`
}

// userResponse はユーザーのJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name"`
	// Token はAPIアクセス用のRS256トークン。
	Token string `json:"token"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// ユーザーを作成し、APIアクセス用のトークンを発行する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if _, err := s.queries.GetUserByEmail(c.Request.Context(), req.Email); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは登録済みです"})
			return
		}

		userID := uuid.New().String()
		if err := s.queries.CreateUser(c.Request.Context(), chessdb.CreateUserParams{
			ID:          userID,
			Email:       req.Email,
			DisplayName: req.DisplayName,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの作成に失敗しました"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		token, err := s.identity.Mint(userID, req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		s.emitEvent(c, userID, event.AggregateTypeUser, event.TypeUserRegistered, event.UserRegisteredData{
			Email:       req.Email,
			DisplayName: req.DisplayName,
		})

		c.JSON(http.StatusCreated, userResponse{
			ID:          userID,
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Token:       token,
		})
	}
}

// eventResponse はイベントのJSONレスポンス構造。
type eventResponse struct {
	// ID はイベントの一意識別子。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt string `json:"created_at"`
}

// handleListEvents はイベント監査ログの取得を処理するハンドラを返す。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := int64(50)
		if raw := c.Query("limit"); raw != "" {
			if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limitが不正です"})
				return
			}
		}

		events, err := s.queries.ListRecentEvents(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントの取得に失敗しました"})
			log.Printf("イベント取得エラー: %v", err)
			return
		}

		responses := make([]eventResponse, 0, len(events))
		for _, e := range events {
			responses = append(responses, eventResponse{
				ID:            e.ID,
				AggregateID:   e.AggregateID,
				AggregateType: e.AggregateType,
				EventType:     e.EventType,
				Data:          json.RawMessage(e.Data),
				Version:       e.Version,
				CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, responses)
	}
}

// emitEvent は状態変更のイベントレコードをeventsテーブルに追記する。
// 監査ログのため、記録の失敗はリクエスト自体を失敗させずログに残す。
func (s *Server) emitEvent(c *gin.Context, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) {
	ctx := c.Request.Context()

	count, err := s.queries.CountEventsByAggregateID(ctx, aggregateID)
	if err != nil {
		log.Printf("イベントバージョンの取得に失敗: %v", err)
		return
	}

	ev, err := event.New(aggregateID, aggregateType, eventType, count+1, data)
	if err != nil {
		log.Printf("イベントの生成に失敗: %v", err)
		return
	}

	if err := s.queries.CreateEvent(ctx, chessdb.CreateEventParams{
		ID:            ev.ID,
		AggregateID:   ev.AggregateID,
		AggregateType: string(ev.AggregateType),
		EventType:     string(ev.EventType),
		Data:          string(ev.Data),
		Version:       ev.Version,
		CreatedAt:     ev.CreatedAt,
	}); err != nil {
		log.Printf("イベントの記録に失敗: %v", err)
	}
}

// loadGame はDB行から対局を復元する。
func (s *Server) loadGame(c *gin.Context, id string) (*game.Game, chessdb.Game, bool) {
	row, err := s.queries.GetGameByID(c.Request.Context(), id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "対局が見つかりません"})
		return nil, chessdb.Game{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の取得に失敗しました"})
		log.Printf("対局取得エラー: %v", err)
		return nil, chessdb.Game{}, false
	}

	var doc game.Doc
	if err := json.Unmarshal([]byte(row.Doc), &doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の復元に失敗しました"})
		log.Printf("対局ドキュメントの解析エラー: %v", err)
		return nil, chessdb.Game{}, false
	}

	g, err := game.FromDoc(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の復元に失敗しました"})
		log.Printf("対局復元エラー: %v", err)
		return nil, chessdb.Game{}, false
	}

	return g, row, true
}

// saveGame は対局の現在の状態をDB行に書き戻す。
func (s *Server) saveGame(c *gin.Context, g *game.Game, turnStartedAt sql.NullTime) bool {
	doc := g.ToDoc()
	docJSON, err := json.Marshal(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の保存に失敗しました"})
		log.Printf("対局ドキュメントのシリアライズエラー: %v", err)
		return false
	}

	if err := s.queries.UpdateGame(c.Request.Context(), chessdb.UpdateGameParams{
		Doc:           string(docJSON),
		InProgress:    doc.InProgress,
		FreeSlots:     int64(doc.FreeSlots),
		TurnStartedAt: turnStartedAt,
		ID:            doc.ID,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の保存に失敗しました"})
		log.Printf("対局保存エラー: %v", err)
		return false
	}

	return true
}
