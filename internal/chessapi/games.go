package chessapi

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chessdb "github.com/nao1215/checkmate/internal/chessapi/db"
	"github.com/nao1215/checkmate/internal/engine"
	"github.com/nao1215/checkmate/internal/game"
	"github.com/nao1215/checkmate/pkg/event"
	"github.com/nao1215/checkmate/pkg/middleware"
)

// slotOpen は空きスロットを表すプレイヤーIDの指定。
const slotOpen = "OPEN"

// opponent は反対側を返す。
func opponent(side string) string {
	if side == game.White {
		return game.Black
	}
	return game.White
}

// sideOf はユーザーが担当する側を返す。対局のプレイヤーでなければfalseを返す。
func sideOf(g *game.Game, userID string) (string, bool) {
	for _, side := range []string{game.White, game.Black} {
		if p := g.Players()[side]; p != nil && *p == userID {
			return side, true
		}
	}
	return "", false
}

// requireUser は認証済みユーザーがDBに存在することを確認してIDを返す。
func (s *Server) requireUser(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
		return "", false
	}

	if _, err := s.queries.GetUserByID(c.Request.Context(), userID); err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
		return "", false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
		log.Printf("ユーザー取得エラー: %v", err)
		return "", false
	}

	return userID, true
}

// createGameRequest は対局作成リクエストのJSON構造。
type createGameRequest struct {
	// Player1ID は白側のプレイヤーID。"OPEN"は空きスロット、"AI"はエンジン。
	Player1ID string `json:"player1_id" binding:"required"`
	// Player2ID は黒側のプレイヤーID。"OPEN"は空きスロット、"AI"はエンジン。
	Player2ID string `json:"player2_id" binding:"required"`
	// TimePerPlayer は持ち時間（秒/側）。nilは時間無制限。
	TimePerPlayer *int `json:"time_per_player"`
	// BoardID は対局を割り当てるロボット盤のID。
	BoardID string `json:"board_id"`
}

// handleCreateGame は対局作成を処理するハンドラを返す。
// 認証済みユーザーが対局の作成者となる。board_idを指定した場合は
// 登録済みコントローラに対局を割り当てる。
func (s *Server) handleCreateGame() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		var req createGameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if req.BoardID != "" {
			if _, err := s.queries.GetControllerByBoardID(c.Request.Context(), req.BoardID); err == sql.ErrNoRows {
				c.JSON(http.StatusBadRequest, gin.H{"error": "指定された盤が登録されていません"})
				return
			} else if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "コントローラの取得に失敗しました"})
				log.Printf("コントローラ取得エラー: %v", err)
				return
			}

			// 1つの盤で同時に進行できる対局は1つだけ
			count, err := s.queries.CountInProgressGamesByBoardID(c.Request.Context(), req.BoardID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の確認に失敗しました"})
				log.Printf("盤上の対局数取得エラー: %v", err)
				return
			}
			if count > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "この盤では対局が進行中です"})
				return
			}
		}

		gameID := uuid.New().String()
		g, err := game.New(userID, gameID, req.TimePerPlayer)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slots := []struct {
			side     string
			playerID string
		}{
			{game.White, req.Player1ID},
			{game.Black, req.Player2ID},
		}
		for _, slot := range slots {
			if slot.playerID == slotOpen {
				continue
			}
			if slot.playerID != game.AIPlayer {
				if _, err := s.queries.GetUserByID(c.Request.Context(), slot.playerID); err == sql.ErrNoRows {
					c.JSON(http.StatusNotFound, gin.H{"error": "プレイヤーが見つかりません"})
					return
				} else if err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "プレイヤーの取得に失敗しました"})
					log.Printf("プレイヤー取得エラー: %v", err)
					return
				}
			}
			if err := g.AddPlayer(slot.playerID, slot.side); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		doc := g.ToDoc()
		docJSON, err := json.Marshal(doc)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の保存に失敗しました"})
			log.Printf("対局ドキュメントのシリアライズエラー: %v", err)
			return
		}

		if err := s.queries.CreateGame(c.Request.Context(), chessdb.CreateGameParams{
			ID:         gameID,
			CreatorID:  userID,
			BoardID:    req.BoardID,
			InProgress: doc.InProgress,
			FreeSlots:  int64(doc.FreeSlots),
			Doc:        string(docJSON),
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "対局の作成に失敗しました"})
			log.Printf("対局作成エラー: %v", err)
			return
		}

		if req.BoardID != "" {
			if err := s.queries.AssignGameToController(c.Request.Context(), chessdb.AssignGameToControllerParams{
				GameID:  sql.NullString{String: gameID, Valid: true},
				BoardID: req.BoardID,
			}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "盤への割り当てに失敗しました"})
				log.Printf("盤への割り当てエラー: %v", err)
				return
			}
		}

		s.emitEvent(c, gameID, event.AggregateTypeGame, event.TypeGameCreated, event.GameCreatedData{
			CreatorID:     userID,
			BoardID:       req.BoardID,
			TimePerPlayer: req.TimePerPlayer,
		})

		c.JSON(http.StatusCreated, doc)
	}
}

// handleListGames は参加可能な対局一覧の取得を処理するハンドラを返す。
// 進行中かつ空きスロットのある対局のみを返す。
func (s *Server) handleListGames() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.queries.ListJoinableGames(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "対局一覧の取得に失敗しました"})
			log.Printf("対局一覧取得エラー: %v", err)
			return
		}

		docs := make([]game.Doc, 0, len(rows))
		for _, row := range rows {
			var doc game.Doc
			if err := json.Unmarshal([]byte(row.Doc), &doc); err != nil {
				log.Printf("対局ドキュメントの解析エラー（%s）: %v", row.ID, err)
				continue
			}
			docs = append(docs, doc)
		}

		c.JSON(http.StatusOK, docs)
	}
}

// handleGetGame は対局詳細の取得を処理するハンドラを返す。
func (s *Server) handleGetGame() gin.HandlerFunc {
	return func(c *gin.Context) {
		g, _, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, g.ToDoc())
	}
}

// joinGameRequest は対局参加リクエストのJSON構造。
type joinGameRequest struct {
	// Side は参加する側（'w'または'b'）。省略時は最初の空きスロットに入る。
	Side string `json:"side"`
}

// handleJoinGame は対局への参加を処理するハンドラを返す。
func (s *Server) handleJoinGame() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		var req joinGameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		g, row, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}

		side := req.Side
		if side == "" {
			switch {
			case g.Players()[game.White] == nil:
				side = game.White
			case g.Players()[game.Black] == nil:
				side = game.Black
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "空きスロットがありません"})
				return
			}
		}

		if err := g.AddPlayer(userID, side); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if !s.saveGame(c, g, row.TurnStartedAt) {
			return
		}

		s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypePlayerJoined, event.PlayerJoinedData{
			PlayerID: userID,
			Side:     side,
		})

		c.JSON(http.StatusOK, g.ToDoc())
	}
}

// moveRequest は指し手リクエストのJSON構造。
type moveRequest struct {
	// Move は指す手のSAN表記。
	Move string `json:"move" binding:"required"`
}

// handleMove は指し手を処理するハンドラを返す。
// 手番側のプレイヤーだけが指せる。持ち時間付きの対局では手番の
// 経過時間を指した側の時計から引く。相手スロットがエンジンの場合は
// 同じリクエスト内でエンジンが応手する。
func (s *Server) handleMove() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		g, row, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}

		if !g.InProgress() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局は終了しています"})
			return
		}

		turn := g.Turn()
		if p := g.Players()[turn]; p == nil || *p != userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "あなたの手番ではありません"})
			return
		}

		// 手番の経過時間を指した側の時計に反映する
		if g.TimeControls() != nil && row.TurnStartedAt.Valid {
			elapsed := int(s.now().Sub(row.TurnStartedAt.Time).Seconds())
			if elapsed > 0 {
				if err := g.TimeDelta(turn, -elapsed); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "時計の更新に失敗しました"})
					log.Printf("時計更新エラー: %v", err)
					return
				}
			}
			if !g.InProgress() {
				// 時間切れ。手は指させずに終局を記録する
				s.emitGameEnded(c, g)
				s.saveGame(c, g, sql.NullTime{})
				c.JSON(http.StatusBadRequest, gin.H{"error": "持ち時間を使い切りました"})
				return
			}
		}

		desc, err := g.Move(req.Move)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeMoveMade, event.MoveMadeData{
			PlayerID: userID,
			SAN:      desc.SAN,
			PlyCount: desc.PlyCount,
		})

		// 相手スロットがエンジンなら即座に応手する
		if g.InProgress() {
			next := g.Turn()
			if p := g.Players()[next]; p != nil && *p == game.AIPlayer {
				s.playEngineMove(c, g)
			}
		}

		if !g.InProgress() {
			s.emitGameEnded(c, g)
		}

		turnStartedAt := sql.NullTime{}
		if g.InProgress() && g.TimeControls() != nil {
			turnStartedAt = sql.NullTime{Time: s.now(), Valid: true}
		}
		if !s.saveGame(c, g, turnStartedAt) {
			return
		}

		c.JSON(http.StatusOK, g.ToDoc())
	}
}

// playEngineMove はエンジンに1手指させる。
// エンジンの失敗で人間の手を巻き戻せないため、エラーはログに残すだけにする。
func (s *Server) playEngineMove(c *gin.Context, g *game.Game) {
	san, err := engine.Select(g.Position())
	if err != nil {
		log.Printf("エンジンの指し手選択エラー（%s）: %v", g.ID(), err)
		return
	}

	desc, err := g.Move(san)
	if err != nil {
		log.Printf("エンジンの指し手適用エラー（%s, %s）: %v", g.ID(), san, err)
		return
	}

	s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeMoveMade, event.MoveMadeData{
		PlayerID: game.AIPlayer,
		SAN:      desc.SAN,
		PlyCount: desc.PlyCount,
	})
}

// emitGameEnded は終局イベントを記録する。
func (s *Server) emitGameEnded(c *gin.Context, g *game.Game) {
	status := g.GameOver()
	reason := ""
	if status.Reason != nil {
		reason = *status.Reason
	}
	s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeGameEnded, event.GameEndedData{
		Result: g.Result(),
		Reason: reason,
	})
}

// handleResign は投了を処理するハンドラを返す。
func (s *Server) handleResign() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		g, _, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}

		side, ok := sideOf(g, userID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局のプレイヤーではありません"})
			return
		}

		if !g.InProgress() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局は終了しています"})
			return
		}

		if err := g.Resign(side); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeGameResigned, event.GameResignedData{Side: side})
		s.emitGameEnded(c, g)

		if !s.saveGame(c, g, sql.NullTime{}) {
			return
		}

		c.JSON(http.StatusOK, g.ToDoc())
	}
}

// handleOfferDraw はドロー提案を処理するハンドラを返す。
// 相手の提案が残っている状態での提案は受諾として扱われる。
func (s *Server) handleOfferDraw() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		g, row, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}

		side, ok := sideOf(g, userID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局のプレイヤーではありません"})
			return
		}

		if !g.InProgress() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局は終了しています"})
			return
		}

		if err := g.OfferDraw(side); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeDrawOffered, event.DrawOfferedData{Side: side})

		turnStartedAt := row.TurnStartedAt
		if !g.InProgress() {
			s.emitGameEnded(c, g)
			turnStartedAt = sql.NullTime{}
		}

		if !s.saveGame(c, g, turnStartedAt) {
			return
		}

		c.JSON(http.StatusOK, g.ToDoc())
	}
}

// respondDrawRequest はドロー提案への応答リクエストのJSON構造。
type respondDrawRequest struct {
	// Accept は提案を受諾するかどうか。
	Accept *bool `json:"accept" binding:"required"`
}

// handleRespondDraw はドロー提案への応答を処理するハンドラを返す。
func (s *Server) handleRespondDraw() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := s.requireUser(c)
		if !ok {
			return
		}

		var req respondDrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		g, row, ok := s.loadGame(c, c.Param("id"))
		if !ok {
			return
		}

		side, ok := sideOf(g, userID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局のプレイヤーではありません"})
			return
		}

		if !g.InProgress() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "対局は終了しています"})
			return
		}

		if !g.DrawOffers()[opponent(side)].Made {
			c.JSON(http.StatusBadRequest, gin.H{"error": "相手のドロー提案がありません"})
			return
		}

		turnStartedAt := row.TurnStartedAt
		if *req.Accept {
			if err := g.AcceptDraw(side); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeDrawAccepted, event.DrawRespondedData{Side: side})
			s.emitGameEnded(c, g)
			turnStartedAt = sql.NullTime{}
		} else {
			if err := g.DeclineDraw(side); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			s.emitEvent(c, g.ID(), event.AggregateTypeGame, event.TypeDrawDeclined, event.DrawRespondedData{Side: side})
		}

		if !s.saveGame(c, g, turnStartedAt) {
			return
		}

		c.JSON(http.StatusOK, g.ToDoc())
	}
}
