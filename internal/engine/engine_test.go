package engine

import (
	"testing"

	"github.com/notnil/chess"
)

// positionFromFEN はFEN文字列から局面を生成するヘルパー関数。
func positionFromFEN(t *testing.T, fen string) *chess.Position {
	t.Helper()
	opt, err := chess.FEN(fen)
	if err != nil {
		t.Fatalf("FENの解析に失敗: %v", err)
	}
	return chess.NewGame(opt).Position()
}

func TestSelect(t *testing.T) {
	t.Parallel()

	t.Run("初期局面で合法手を返す", func(t *testing.T) {
		t.Parallel()
		g := chess.NewGame()
		san, err := Select(g.Position())
		if err != nil {
			t.Fatalf("指し手の選択に失敗: %v", err)
		}

		move, err := chess.AlgebraicNotation{}.Decode(g.Position(), san)
		if err != nil {
			t.Fatalf("返された手 %q が解析できません: %v", san, err)
		}
		if err := g.Move(move); err != nil {
			t.Errorf("返された手 %q が合法手ではありません: %v", san, err)
		}
	})

	t.Run("浮いているクイーンを取る", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "k7/8/8/3q4/2P5/8/8/K7 w - - 0 1")

		san, err := Select(pos)
		if err != nil {
			t.Fatalf("指し手の選択に失敗: %v", err)
		}
		if san != "cxd5" {
			t.Errorf("指し手: got %q, want cxd5", san)
		}
	})

	t.Run("黒番でも損得を正しく評価する", func(t *testing.T) {
		t.Parallel()
		pos := positionFromFEN(t, "k7/8/2p5/3Q4/8/8/8/K7 b - - 0 1")

		san, err := Select(pos)
		if err != nil {
			t.Fatalf("指し手の選択に失敗: %v", err)
		}
		if san != "cxd5" {
			t.Errorf("指し手: got %q, want cxd5", san)
		}
	})

	t.Run("1手詰めを逃さない", func(t *testing.T) {
		t.Parallel()
		// バックランクメイト: Rd8#
		pos := positionFromFEN(t, "6k1/5ppp/8/8/8/8/3R4/K7 w - - 0 1")

		san, err := Select(pos)
		if err != nil {
			t.Fatalf("指し手の選択に失敗: %v", err)
		}
		if san != "Rd8#" {
			t.Errorf("指し手: got %q, want Rd8#", san)
		}
	})

	t.Run("終了した局面ではエラー", func(t *testing.T) {
		t.Parallel()
		// フールズメイト後の局面（白番でチェックメイトされている）
		pos := positionFromFEN(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")

		if _, err := Select(pos); err == nil {
			t.Error("終了した局面でエラーが返りませんでした")
		}
	})
}
