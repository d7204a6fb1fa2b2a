package game

import (
	"fmt"
)

// Doc はGameのドキュメント表現。
// DBへの永続化とAPIレスポンスの両方でこの形式を使う。
type Doc struct {
	// ID は対局の一意識別子。
	ID string `json:"id"`
	// Creator は対局を作成したユーザーのID。
	Creator string `json:"creator"`
	// Players は各側のプレイヤーID。nilは空きスロット。
	Players map[string]*string `json:"players"`
	// FreeSlots は空きスロット数。
	FreeSlots int `json:"free_slots"`
	// TimeControls は持ち時間（秒/側）。時間無制限ならnil。
	TimeControls *int `json:"time_controls"`
	// RemainingTime は各側の残り時間（秒）。
	RemainingTime map[string]*int `json:"remaining_time"`
	// Resigned は各側の投了状態。
	Resigned map[string]bool `json:"resigned"`
	// DrawOffers は各側のドロー提案状態。
	DrawOffers map[string]Offer `json:"draw_offers"`
	// InProgress は対局が進行中かどうか。
	InProgress bool `json:"in_progress"`
	// Result は対局結果（1-0、0-1、1/2-1/2、*）。
	Result string `json:"result"`
	// GameOver は終了状態と終了理由。
	GameOver Status `json:"game_over"`
	// Turn は現在の手番。
	Turn string `json:"turn"`
	// PlyCount は半手数。
	PlyCount int `json:"ply_count"`
	// MoveCount は手数。
	MoveCount int `json:"move_count"`
	// PGN はムーブテキスト。
	PGN string `json:"pgn"`
	// History は手の詳細記録。
	History []MoveDescription `json:"history"`
	// FEN は現在の盤面を表すFEN文字列。
	FEN string `json:"fen"`
}

// ToDoc はGameのドキュメント表現を生成する。
func (g *Game) ToDoc() Doc {
	return Doc{
		ID:            g.id,
		Creator:       g.creator,
		Players:       g.players,
		FreeSlots:     g.FreeSlots(),
		TimeControls:  g.timeControls,
		RemainingTime: g.remaining,
		Resigned:      g.resigned,
		DrawOffers:    g.drawOffers,
		InProgress:    g.InProgress(),
		Result:        g.Result(),
		GameOver:      g.GameOver(),
		Turn:          g.Turn(),
		PlyCount:      g.plies,
		MoveCount:     g.MoveCount(),
		PGN:           g.PGN(),
		History:       g.history,
		FEN:           g.FEN(),
	}
}

// FromDoc はドキュメント表現からGameを復元する。
// 手の履歴を新しい盤面にリプレイしてから、投了・ドロー・残り時間の状態を読み込む。
func FromDoc(doc Doc) (*Game, error) {
	g, err := New(doc.Creator, doc.ID, doc.TimeControls)
	if err != nil {
		return nil, err
	}

	g.players = map[string]*string{White: nil, Black: nil}
	for _, side := range []string{White, Black} {
		if p, ok := doc.Players[side]; ok && p != nil {
			id := *p
			g.players[side] = &id
		}
	}

	// 履歴の手を新しい盤面にリプレイする
	for _, desc := range doc.History {
		pos := g.inner.Position()
		move, err := decodeSAN(pos, desc.SAN)
		if err != nil {
			return nil, fmt.Errorf("対局 %s の履歴のリプレイに失敗（手 %q）: %w", doc.ID, desc.SAN, err)
		}
		encoded := encodeSAN(pos, move)
		if err := g.inner.Move(move); err != nil {
			return nil, fmt.Errorf("対局 %s の履歴のリプレイに失敗（手 %q）: %w", doc.ID, desc.SAN, err)
		}
		g.canonical = append(g.canonical, encoded)
		g.history = append(g.history, desc)
	}

	g.plies = doc.PlyCount
	if doc.RemainingTime != nil {
		g.remaining = map[string]*int{White: nil, Black: nil}
		for _, side := range []string{White, Black} {
			if t, ok := doc.RemainingTime[side]; ok && t != nil {
				v := *t
				g.remaining[side] = &v
			}
		}
	}
	if doc.Resigned != nil {
		g.resigned = map[string]bool{
			White: doc.Resigned[White],
			Black: doc.Resigned[Black],
		}
	}
	if doc.DrawOffers != nil {
		g.drawOffers = map[string]Offer{
			White: doc.DrawOffers[White],
			Black: doc.DrawOffers[Black],
		}
	}

	return g, nil
}
