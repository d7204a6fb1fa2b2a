// Package game はチェス対局のドメインロジックを提供する。
// 持ち時間、投了、ドロー提案、手の履歴といった対局の状態を一つのGameとして扱う。
// 盤面のルール判定は github.com/notnil/chess に委譲する。
package game

import (
	"fmt"

	"github.com/notnil/chess"
)

// 側を表す定数。APIとDBドキュメントの両方でこの表記を使う。
const (
	// White は白番。
	White = "w"
	// Black は黒番。
	Black = "b"
)

// AIPlayer はプレイヤースロットにエンジンが割り当てられていることを表す識別子。
const AIPlayer = "AI"

// Offer は片側のドロー提案状態を表す。
type Offer struct {
	// Made はこの側がドローを提案しているかどうか。
	Made bool `json:"made"`
	// Accepted はこの側の提案を相手が受諾したかどうか。
	Accepted bool `json:"accepted"`
}

// Status は対局の終了状態と終了理由を表す。
type Status struct {
	// GameOver は対局が終了しているかどうか。
	GameOver bool `json:"game_over"`
	// Reason は終了理由。対局中はnil。
	Reason *string `json:"reason"`
}

// Game は1つのチェス対局を表す。
// 生成はNewまたはFromDocで行い、状態変更は必ずメソッドを通して行うこと。
type Game struct {
	// id は対局の一意識別子。
	id string
	// creator は対局を作成したユーザーのID。
	creator string
	// inner はルール判定を担う内部の盤面オブジェクト。
	inner *chess.Game
	// players は各側に割り当てられたプレイヤーID。nilは空きスロット。
	players map[string]*string
	// timeControls は持ち時間（秒/側）。nilは時間無制限。
	timeControls *int
	// remaining は各側の残り時間（秒）。時間無制限の場合はnil。
	remaining map[string]*int
	// plies は半手数（バージョン番号としても使う）。
	plies int
	// history は手の詳細記録。
	history []MoveDescription
	// canonical は正規化SAN（チェック記号付き）の列。PGN生成に使う。
	canonical []string
	// resigned は各側の投了状態。
	resigned map[string]bool
	// drawOffers は各側のドロー提案状態。
	drawOffers map[string]Offer
}

// New は新しい対局を生成する。
// timeControlsがnilの場合は時間無制限の対局になる。負の値はエラー。
func New(creator, id string, timeControls *int) (*Game, error) {
	if timeControls != nil && *timeControls < 0 {
		return nil, fmt.Errorf("持ち時間に負の値は指定できません: %d", *timeControls)
	}

	g := &Game{
		id:           id,
		creator:      creator,
		inner:        chess.NewGame(),
		players:      map[string]*string{White: nil, Black: nil},
		timeControls: timeControls,
		remaining:    map[string]*int{White: nil, Black: nil},
		history:      []MoveDescription{},
		resigned:     map[string]bool{White: false, Black: false},
		drawOffers:   map[string]Offer{White: {}, Black: {}},
	}
	if timeControls != nil {
		w, b := *timeControls, *timeControls
		g.remaining[White] = &w
		g.remaining[Black] = &b
	}
	return g, nil
}

// invert は'w'と'b'を反転する。
func invert(side string) (string, error) {
	switch side {
	case White:
		return Black, nil
	case Black:
		return White, nil
	default:
		return "", fmt.Errorf("不正な側の指定です: %q（'w'または'b'を指定してください）", side)
	}
}

// ID は対局IDを返す。
func (g *Game) ID() string { return g.id }

// Creator は対局作成者のユーザーIDを返す。
func (g *Game) Creator() string { return g.creator }

// Players は各側のプレイヤーIDを返す。nilは空きスロット。
func (g *Game) Players() map[string]*string { return g.players }

// TimeControls は持ち時間（秒/側）を返す。時間無制限ならnil。
func (g *Game) TimeControls() *int { return g.timeControls }

// RemainingTime は各側の残り時間（秒）を返す。
func (g *Game) RemainingTime() map[string]*int { return g.remaining }

// PlyCount は半手数を返す。盤面が変わるたびに増えるためバージョン番号としても使える。
func (g *Game) PlyCount() int { return g.plies }

// MoveCount は手数（黒が指すたびに増える完全な手の番号）を返す。
func (g *Game) MoveCount() int { return g.plies/2 + 1 }

// FEN は現在の盤面を表すFEN文字列を返す。
func (g *Game) FEN() string { return g.inner.FEN() }

// History は手の詳細記録を返す。
func (g *Game) History() []MoveDescription { return g.history }

// Resigned は各側の投了状態を返す。
func (g *Game) Resigned() map[string]bool { return g.resigned }

// DrawOffers は各側のドロー提案状態を返す。
func (g *Game) DrawOffers() map[string]Offer { return g.drawOffers }

// Turn は現在の手番（'w'または'b'）を返す。
func (g *Game) Turn() string {
	if g.inner.Position().Turn() == chess.White {
		return White
	}
	return Black
}

// FreeSlots は空いているプレイヤースロットの数を返す。
func (g *Game) FreeSlots() int {
	free := 0
	for _, p := range g.players {
		if p == nil {
			free++
		}
	}
	return free
}

// PGN は手の履歴を表すムーブテキスト（例: "1. f3 e5 2. g4 Qh4#"）を返す。
func (g *Game) PGN() string {
	text := ""
	for i, san := range g.canonical {
		if i%2 == 0 {
			if i > 0 {
				text += " "
			}
			text += fmt.Sprintf("%d. %s", i/2+1, san)
		} else {
			text += " " + san
		}
	}
	return text
}

// boardResult は盤面だけから決まる結果を返す。
// スリーフォールドと50手ルールによるドローは、可能であれば常に成立させる。
func (g *Game) boardResult() chess.Outcome {
	if outcome := g.inner.Outcome(); outcome != chess.NoOutcome {
		return outcome
	}
	for _, m := range g.inner.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return chess.Draw
		}
	}
	return chess.NoOutcome
}

// Result は対局の結果（1-0、0-1、1/2-1/2、対局中なら*）を返す。
// 盤面の結果に対して投了・ドロー合意・時間切れの順で上書きする。
func (g *Game) Result() string {
	result := string(g.boardResult())

	if g.resigned[White] {
		result = string(chess.BlackWon)
	}
	if g.resigned[Black] {
		result = string(chess.WhiteWon)
	}
	if g.drawOffers[White].Accepted || g.drawOffers[Black].Accepted {
		result = string(chess.Draw)
	}
	if g.outOfTime(White) {
		result = string(chess.BlackWon)
	}
	if g.outOfTime(Black) {
		result = string(chess.WhiteWon)
	}
	// 両者が時間切れになることは通常起こらないが、念のためドローにする
	if g.outOfTime(White) && g.outOfTime(Black) {
		result = string(chess.Draw)
	}
	return result
}

// outOfTime は指定側が時間切れかどうかを返す。時間無制限の対局では常にfalse。
func (g *Game) outOfTime(side string) bool {
	return g.remaining[side] != nil && *g.remaining[side] == 0
}

// InProgress は対局が進行中かどうかを返す。
func (g *Game) InProgress() bool {
	return g.Result() == string(chess.NoOutcome)
}

// 終了理由の文字列表現。
const (
	ReasonCheckmate       = "Checkmate"
	ReasonStalemate       = "Stalemate"
	ReasonThreefold       = "Three-fold repetition"
	ReasonFiftyMoves      = "Fifty move rule"
	ReasonSeventyFive     = "Seventy-five move rule"
	ReasonFivefold        = "Five-fold repetition"
	ReasonInsufficient    = "Insufficient material"
	ReasonResignation     = "Resignation"
	ReasonDrawByAgreement = "Draw by agreement"
	ReasonTime            = "Time"
)

// GameOver は対局の終了状態と終了理由を返す。
func (g *Game) GameOver() Status {
	if reason, over := g.boardReason(); over {
		return Status{GameOver: true, Reason: &reason}
	}

	if g.resigned[White] || g.resigned[Black] {
		reason := ReasonResignation
		return Status{GameOver: true, Reason: &reason}
	}

	if g.drawOffers[White].Accepted || g.drawOffers[Black].Accepted {
		reason := ReasonDrawByAgreement
		return Status{GameOver: true, Reason: &reason}
	}

	if g.outOfTime(White) || g.outOfTime(Black) {
		reason := ReasonTime
		return Status{GameOver: true, Reason: &reason}
	}

	return Status{GameOver: false, Reason: nil}
}

// boardReason は盤面のルール上の終了理由を返す。
func (g *Game) boardReason() (string, bool) {
	if g.inner.Outcome() != chess.NoOutcome {
		switch g.inner.Method() {
		case chess.Checkmate:
			return ReasonCheckmate, true
		case chess.Stalemate:
			return ReasonStalemate, true
		case chess.InsufficientMaterial:
			return ReasonInsufficient, true
		case chess.SeventyFiveMoveRule:
			return ReasonSeventyFive, true
		case chess.FivefoldRepetition:
			return ReasonFivefold, true
		}
		return ReasonCheckmate, true
	}

	// 成立可能なドローは常に成立させる。50手ルールを優先する。
	claimable := ""
	for _, m := range g.inner.EligibleDraws() {
		switch m {
		case chess.ThreefoldRepetition:
			if claimable == "" {
				claimable = ReasonThreefold
			}
		case chess.FiftyMoveRule:
			claimable = ReasonFiftyMoves
		}
	}
	if claimable != "" {
		return claimable, true
	}
	return "", false
}

// AddPlayer は対局にプレイヤーを追加する。
// sideは'w'または'b'。同一IDが両側に入ることはできない。
func (g *Game) AddPlayer(id, side string) error {
	other, err := invert(side)
	if err != nil {
		return err
	}
	// エンジン同士の対局は許可する
	if p := g.players[other]; p != nil && *p == id && id != AIPlayer {
		return fmt.Errorf("ID %q はすでに反対側（%s）のプレイヤーです", id, other)
	}
	if g.players[side] != nil {
		return fmt.Errorf("%s側のプレイヤースロットはすでに埋まっています", side)
	}
	g.players[side] = &id
	return nil
}

// Move は指定されたSANの手を盤面に適用し、手の詳細記録を返す。
// 対局が終了している場合や手番側にプレイヤーがいない場合はエラー。
func (g *Game) Move(san string) (MoveDescription, error) {
	if !g.InProgress() {
		return MoveDescription{}, fmt.Errorf("終了した対局では手 %q を指せません", san)
	}

	turn := g.Turn()
	if g.players[turn] == nil {
		return MoveDescription{}, fmt.Errorf("%s側にプレイヤーがいないため手 %q を指せません", turn, san)
	}

	pos := g.inner.Position()
	move, err := decodeSAN(pos, san)
	if err != nil {
		return MoveDescription{}, fmt.Errorf("手 %q は現在の局面では指せません: %w", san, err)
	}
	encoded := encodeSAN(pos, move)

	if err := g.inner.Move(move); err != nil {
		return MoveDescription{}, fmt.Errorf("手 %q の適用に失敗: %w", san, err)
	}

	g.plies++
	g.canonical = append(g.canonical, encoded)

	// どちらかのドロー提案が残っていればクリアする
	for _, side := range []string{White, Black} {
		_ = g.DeclineDraw(side)
	}

	desc := describeMove(pos, move, san, turn, g.plies)
	g.history = append(g.history, desc)
	return desc, nil
}

// TimeDelta は指定側の残り時間に増減分（秒）を適用する。
// sideが空文字の場合は現在の手番側に適用する。
// 時間無制限・終了済み・すでに時間切れの対局には何もしない。減算で0を下回る場合は0にする。
func (g *Game) TimeDelta(side string, delta int) error {
	if side == "" {
		side = g.Turn()
	}
	if _, err := invert(side); err != nil {
		return err
	}

	if g.timeControls == nil || !g.InProgress() || *g.remaining[side] == 0 {
		return nil
	}

	if delta < 0 && *g.remaining[side]+delta < 0 {
		*g.remaining[side] = 0
		return nil
	}
	*g.remaining[side] += delta
	return nil
}

// Resign は指定側を投了させる。sideが空文字の場合は現在の手番側を投了させる。
// 終了済みの対局や投了済みの側には何もしない。
func (g *Game) Resign(side string) error {
	if side == "" {
		side = g.Turn()
	}
	if _, err := invert(side); err != nil {
		return err
	}

	if !g.InProgress() || g.resigned[side] {
		return nil
	}
	g.resigned[side] = true
	return nil
}

// OfferDraw は指定側から相手にドローを提案する。
// 相手がすでに提案している場合は、その提案を受諾する。
func (g *Game) OfferDraw(side string) error {
	if side == "" {
		side = g.Turn()
	}
	other, err := invert(side)
	if err != nil {
		return err
	}

	if !g.InProgress() || g.drawOffers[side].Made {
		return nil
	}

	if g.drawOffers[other].Made {
		if err := g.AcceptDraw(side); err != nil {
			return err
		}
	}

	offer := g.drawOffers[side]
	offer.Made = true
	g.drawOffers[side] = offer
	return nil
}

// AcceptDraw は相手のドロー提案を受諾する。相手が提案していない場合は何もしない。
func (g *Game) AcceptDraw(side string) error {
	if side == "" {
		side = g.Turn()
	}
	other, err := invert(side)
	if err != nil {
		return err
	}

	if !g.InProgress() || !g.drawOffers[other].Made {
		return nil
	}

	offer := g.drawOffers[other]
	offer.Accepted = true
	g.drawOffers[other] = offer
	return nil
}

// DeclineDraw は相手のドロー提案を拒否する。
// 提案がない場合や受諾済みの場合は何もしない。拒否されると相手は再提案できる。
func (g *Game) DeclineDraw(side string) error {
	if side == "" {
		side = g.Turn()
	}
	other, err := invert(side)
	if err != nil {
		return err
	}

	if !g.InProgress() || !g.drawOffers[other].Made || g.drawOffers[other].Accepted {
		return nil
	}

	offer := g.drawOffers[other]
	offer.Made = false
	g.drawOffers[other] = offer
	return nil
}

// decodeSAN はSAN表記の手を現在の局面で解釈する。
func decodeSAN(pos *chess.Position, san string) (*chess.Move, error) {
	return chess.AlgebraicNotation{}.Decode(pos, san)
}

// encodeSAN は手を正規化SAN（チェック記号付き）に変換する。
func encodeSAN(pos *chess.Position, move *chess.Move) string {
	return chess.AlgebraicNotation{}.Encode(pos, move)
}

// ValidMoves は現在の局面で指せる手の一覧を返す。エンジンが使用する。
func (g *Game) ValidMoves() []*chess.Move {
	return g.inner.ValidMoves()
}

// Position は現在の局面を返す。エンジンが使用する。
func (g *Game) Position() *chess.Position {
	return g.inner.Position()
}
