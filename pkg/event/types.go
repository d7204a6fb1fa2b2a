package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeGame は対局エンティティを表す。
	AggregateTypeGame AggregateType = "Game"
	// AggregateTypeController はロボット盤コントローラを表す。
	AggregateTypeController AggregateType = "Controller"
	// AggregateTypeUser はユーザーエンティティを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeGameCreated は対局が作成されたことを表す。
	TypeGameCreated Type = "GameCreated"
	// TypePlayerJoined はプレイヤーが対局に参加したことを表す。
	TypePlayerJoined Type = "PlayerJoined"
	// TypeMoveMade は手が指されたことを表す。
	TypeMoveMade Type = "MoveMade"
	// TypeDrawOffered はドローが提案されたことを表す。
	TypeDrawOffered Type = "DrawOffered"
	// TypeDrawAccepted はドロー提案が受諾されたことを表す。
	TypeDrawAccepted Type = "DrawAccepted"
	// TypeDrawDeclined はドロー提案が拒否されたことを表す。
	TypeDrawDeclined Type = "DrawDeclined"
	// TypeGameResigned はプレイヤーが投了したことを表す。
	TypeGameResigned Type = "GameResigned"
	// TypeGameEnded は対局が終了したことを表す。
	TypeGameEnded Type = "GameEnded"

	// TypeUserRegistered はユーザーが登録されたことを表す。
	TypeUserRegistered Type = "UserRegistered"

	// TypeControllerRegistered はロボット盤コントローラが登録されたことを表す。
	TypeControllerRegistered Type = "ControllerRegistered"
)

// Event は状態変更の不変の監査レコードを表す。
// chessapiはすべての状態変更をこの構造体としてeventsテーブルに永続化する。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// GameCreatedData はGameCreatedイベントのデータ。
type GameCreatedData struct {
	// CreatorID は対局を作成したユーザーのID。
	CreatorID string `json:"creator_id"`
	// BoardID は対局が割り当てられたロボット盤のID。
	BoardID string `json:"board_id,omitempty"`
	// TimePerPlayer は持ち時間（秒/側）。時間無制限ならnil。
	TimePerPlayer *int `json:"time_per_player"`
}

// PlayerJoinedData はPlayerJoinedイベントのデータ。
type PlayerJoinedData struct {
	// PlayerID は参加したプレイヤーのID。
	PlayerID string `json:"player_id"`
	// Side は参加した側（'w'または'b'）。
	Side string `json:"side"`
}

// MoveMadeData はMoveMadeイベントのデータ。
type MoveMadeData struct {
	// PlayerID は手を指したプレイヤーのID。
	PlayerID string `json:"player_id"`
	// SAN は指した手の表記。
	SAN string `json:"san"`
	// PlyCount は手を指した後の半手数。
	PlyCount int `json:"ply_count"`
}

// DrawOfferedData はDrawOfferedイベントのデータ。
type DrawOfferedData struct {
	// Side は提案した側（'w'または'b'）。
	Side string `json:"side"`
}

// DrawRespondedData はDrawAccepted/DrawDeclinedイベントのデータ。
type DrawRespondedData struct {
	// Side は応答した側（'w'または'b'）。
	Side string `json:"side"`
}

// GameResignedData はGameResignedイベントのデータ。
type GameResignedData struct {
	// Side は投了した側（'w'または'b'）。
	Side string `json:"side"`
}

// GameEndedData はGameEndedイベントのデータ。
type GameEndedData struct {
	// Result は対局結果（1-0、0-1、1/2-1/2）。
	Result string `json:"result"`
	// Reason は終了理由。
	Reason string `json:"reason"`
}

// UserRegisteredData はUserRegisteredイベントのデータ。
type UserRegisteredData struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name"`
}

// ControllerRegisteredData はControllerRegisteredイベントのデータ。
type ControllerRegisteredData struct {
	// BoardVersion はロボット盤のファームウェアバージョン。
	BoardVersion string `json:"board_version"`
}
