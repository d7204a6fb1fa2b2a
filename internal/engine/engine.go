// Package engine はAIプレイヤーの指し手選択を提供する。
// 駒の損得だけを評価する浅いネガマックス探索で、
// ロボット対局の相手として十分な手を返す。
package engine

import (
	"fmt"

	"github.com/notnil/chess"
)

// searchDepth は探索の深さ（半手数）。
const searchDepth = 2

// pieceValues は駒の種類ごとの評価値（センチポーンではなくポーン単位）。
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   1,
	chess.Knight: 3,
	chess.Bishop: 3,
	chess.Rook:   5,
	chess.Queen:  9,
}

// 探索の打ち切り値。チェックメイトの評価に使う。
const infinity = 1 << 20

// Select は現在の局面で手番側が指すべき手をSAN表記で返す。
// 合法手がない（対局が終了している）場合はエラーを返す。
func Select(pos *chess.Position) (string, error) {
	moves := pos.ValidMoves()
	if len(moves) == 0 {
		return "", fmt.Errorf("合法手がありません")
	}

	best := moves[0]
	bestScore := -infinity - 1
	for _, move := range moves {
		score := -negamax(pos.Update(move), searchDepth-1)
		if score > bestScore {
			best = move
			bestScore = score
		}
	}

	return chess.AlgebraicNotation{}.Encode(pos, best), nil
}

// negamax は手番側から見た局面の評価値を返す。
func negamax(pos *chess.Position, depth int) int {
	switch pos.Status() {
	case chess.Checkmate:
		return -infinity
	case chess.Stalemate:
		return 0
	}

	if depth == 0 {
		return evaluate(pos)
	}

	moves := pos.ValidMoves()
	if len(moves) == 0 {
		return evaluate(pos)
	}

	best := -infinity - 1
	for _, move := range moves {
		if score := -negamax(pos.Update(move), depth-1); score > best {
			best = score
		}
	}
	return best
}

// evaluate は手番側から見た駒の損得を数える。
func evaluate(pos *chess.Position) int {
	turn := pos.Turn()
	score := 0
	for _, piece := range pos.Board().SquareMap() {
		value := pieceValues[piece.Type()]
		if piece.Color() == turn {
			score += value
		} else {
			score -= value
		}
	}
	return score
}
