package chessapi

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chessdb "github.com/nao1215/checkmate/internal/chessapi/db"
	"github.com/nao1215/checkmate/internal/game"
	"github.com/nao1215/checkmate/pkg/event"
)

// controllerTimeout はコントローラの生存確認の猶予時間。
// この時間を超えてポーリングのないコントローラは失効とみなし、
// 同じボードIDでの再登録を許可する。
const controllerTimeout = 60 * time.Second

// registerControllerRequest はコントローラ登録リクエストのJSON構造。
type registerControllerRequest struct {
	// BoardID はロボット盤の一意識別子。
	BoardID string `json:"board_id" binding:"required"`
	// BoardVersion はロボット盤のファームウェアバージョン。
	BoardVersion string `json:"board_version" binding:"required"`
}

// handleRegisterController はロボット盤コントローラの登録を処理するハンドラを返す。
// 生存しているコントローラと同じボードIDでの登録は拒否する。
// 失効したコントローラは同じボードIDで再登録できる。
func (s *Server) handleRegisterController() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerControllerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		existing, err := s.queries.GetControllerByBoardID(c.Request.Context(), req.BoardID)
		if err != nil && err != sql.ErrNoRows {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コントローラの取得に失敗しました"})
			log.Printf("コントローラ取得エラー: %v", err)
			return
		}
		if err == nil && s.now().Sub(existing.LastSeen) < controllerTimeout {
			c.JSON(http.StatusBadRequest, gin.H{"error": "このボードIDは既に使用されています"})
			return
		}

		if err := s.queries.UpsertController(c.Request.Context(), chessdb.UpsertControllerParams{
			BoardID:      req.BoardID,
			BoardVersion: req.BoardVersion,
			LastSeen:     s.now(),
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コントローラの登録に失敗しました"})
			log.Printf("コントローラ登録エラー: %v", err)
			return
		}

		s.emitEvent(c, req.BoardID, event.AggregateTypeController, event.TypeControllerRegistered,
			event.ControllerRegisteredData{BoardVersion: req.BoardVersion})

		c.JSON(http.StatusCreated, gin.H{
			"board_id":      req.BoardID,
			"board_version": req.BoardVersion,
		})
	}
}

// pollRequest はコントローラのポーリングリクエストのJSON構造。
type pollRequest struct {
	// BoardID はロボット盤の一意識別子。
	BoardID string `json:"board_id" binding:"required"`
	// PlyCount はコントローラが盤上に反映済みの半手数。
	PlyCount *int `json:"ply_count" binding:"required"`
	// Error はコントローラが検出したエラーの内容。正常時は空。
	Error string `json:"error"`
}

// handlePoll はコントローラのポーリングを処理するハンドラを返す。
// 割り当てられた対局の、コントローラが未反映の手の詳細記録を返す。
// 対局の割り当てがない場合、新しい手がない場合、コントローラが
// エラーを報告した場合は空の履歴を返す。
func (s *Server) handlePoll() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pollRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if *req.PlyCount < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ply_countが不正です"})
			return
		}

		ctrl, err := s.queries.GetControllerByBoardID(c.Request.Context(), req.BoardID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"error": "コントローラが登録されていません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コントローラの取得に失敗しました"})
			log.Printf("コントローラ取得エラー: %v", err)
			return
		}

		// 失効の判定はlast_seenの更新より前に行う
		if s.now().Sub(ctrl.LastSeen) > controllerTimeout {
			c.JSON(http.StatusBadRequest, gin.H{"error": "コントローラの登録が失効しています"})
			return
		}

		if err := s.queries.TouchController(c.Request.Context(), chessdb.TouchControllerParams{
			LastSeen: s.now(),
			BoardID:  req.BoardID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コントローラの更新に失敗しました"})
			log.Printf("コントローラ更新エラー: %v", err)
			return
		}

		history := []game.MoveDescription{}

		switch {
		case req.Error != "":
			// 盤上でエラーが起きている間は新しい手を送らない
			log.Printf("コントローラがエラーを報告（%s）: %s", req.BoardID, req.Error)
		case ctrl.GameID.Valid:
			row, err := s.queries.GetGameByID(c.Request.Context(), ctrl.GameID.String)
			if err != nil {
				log.Printf("割り当て対局の取得エラー（%s）: %v", ctrl.GameID.String, err)
				break
			}
			var doc game.Doc
			if err := json.Unmarshal([]byte(row.Doc), &doc); err != nil {
				log.Printf("対局ドキュメントの解析エラー（%s）: %v", row.ID, err)
				break
			}
			if *req.PlyCount < len(doc.History) {
				history = doc.History[*req.PlyCount:]
			}
		}

		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}
