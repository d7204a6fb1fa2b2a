package game

import (
	"github.com/notnil/chess"
)

// Promotion は手の昇格情報を表す。
type Promotion struct {
	// Promotion は昇格が行われたかどうか。
	Promotion bool `json:"promotion"`
	// Piece は昇格後の駒（小文字1文字）。昇格がない場合はnil。
	Piece *string `json:"piece"`
}

// Capture は手の駒取り情報を表す。
type Capture struct {
	// Capture は駒取りが行われたかどうか。
	Capture bool `json:"capture"`
	// Piece は取られた駒（小文字1文字）。駒取りがない場合はnil。
	Piece *string `json:"piece"`
}

// Castle は手のキャスリング情報を表す。
type Castle struct {
	// Castle はキャスリングが行われたかどうか。
	Castle bool `json:"castle"`
	// Side はキャスリングの側（'k'または'q'）。キャスリングがない場合はnil。
	Side *string `json:"side"`
}

// EnPassant は手のアンパッサン情報を表す。
type EnPassant struct {
	// EnPassant はアンパッサンが行われたかどうか。
	EnPassant bool `json:"en_passant"`
	// Square は取られたポーンがいたマス。アンパッサンがない場合はnil。
	Square *string `json:"square"`
}

// MoveDescription は1手の詳細記録。
// ロボットコントローラが盤上の駒を物理的に動かすために必要な情報をすべて含む。
type MoveDescription struct {
	// SAN はリクエストで指定された手の表記。
	SAN string `json:"san"`
	// Side は手を指した側（'w'または'b'）。
	Side string `json:"side"`
	// PlyCount はこの手を指した後の半手数。
	PlyCount int `json:"ply_count"`
	// MoveCount はこの手の手数。
	MoveCount int `json:"move_count"`
	// Piece は動かした駒（小文字1文字）。
	Piece string `json:"piece"`
	// From は移動元のマス。
	From string `json:"from"`
	// To は移動先のマス。
	To string `json:"to"`
	// Promotion は昇格情報。
	Promotion Promotion `json:"promotion"`
	// Capture は駒取り情報。
	Capture Capture `json:"capture"`
	// Castle はキャスリング情報。
	Castle Castle `json:"castle"`
	// EnPassant はアンパッサン情報。
	EnPassant EnPassant `json:"en_passant"`
}

// pieceLetter は駒の種類を小文字1文字に変換する。
func pieceLetter(t chess.PieceType) string {
	switch t {
	case chess.King:
		return "k"
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	case chess.Pawn:
		return "p"
	}
	return ""
}

// describeMove は手の詳細記録を構築する。
// posは手を適用する前の局面、pliesは手を適用した後の半手数を渡すこと。
func describeMove(pos *chess.Position, move *chess.Move, san, side string, plies int) MoveDescription {
	desc := MoveDescription{
		SAN:       san,
		Side:      side,
		PlyCount:  plies,
		MoveCount: (plies + 1) / 2,
		Piece:     pieceLetter(pos.Board().Piece(move.S1()).Type()),
		From:      move.S1().String(),
		To:        move.S2().String(),
	}

	if move.Promo() != chess.NoPieceType {
		piece := pieceLetter(move.Promo())
		desc.Promotion = Promotion{Promotion: true, Piece: &piece}
	}

	if move.HasTag(chess.Capture) || move.HasTag(chess.EnPassant) {
		if move.HasTag(chess.EnPassant) {
			// アンパッサンでは移動先の1つ後ろのマスにいるポーンを取る
			down := -8
			if side == Black {
				down = 8
			}
			square := chess.Square(int(move.S2()) + down).String()
			pawn := "p"
			desc.EnPassant = EnPassant{EnPassant: true, Square: &square}
			desc.Capture = Capture{Capture: true, Piece: &pawn}
		} else {
			piece := pieceLetter(pos.Board().Piece(move.S2()).Type())
			desc.Capture = Capture{Capture: true, Piece: &piece}
		}
	}

	if move.HasTag(chess.KingSideCastle) {
		k := "k"
		desc.Castle = Castle{Castle: true, Side: &k}
	} else if move.HasTag(chess.QueenSideCastle) {
		q := "q"
		desc.Castle = Castle{Castle: true, Side: &q}
	}

	return desc
}
