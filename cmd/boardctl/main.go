// ロボット盤コントローラの開発用CLI。
// chessapiにコントローラを登録し、割り当てられた対局の手を
// 一定間隔でポーリングして標準出力に表示する。
// 実機のコントローラと同じプロトコルで対話するため、
// サーバー側の動作確認に使用する。
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/nao1215/checkmate/internal/game"
	"github.com/nao1215/checkmate/pkg/httpclient"
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:5000", "chessapiのベースURL")
		boardID      = flag.String("board", "", "ボードID（必須）")
		boardVersion = flag.String("version", "dev", "ボードのバージョン文字列")
		interval     = flag.Duration("interval", 2*time.Second, "ポーリング間隔")
	)
	flag.Parse()

	if *boardID == "" {
		log.Fatal("-boardでボードIDを指定してください")
	}

	client := httpclient.New(*baseURL)
	ctx := context.Background()

	if err := client.PostJSON(ctx, "/controller/register", map[string]string{
		"board_id":      *boardID,
		"board_version": *boardVersion,
	}, nil); err != nil {
		log.Fatalf("コントローラの登録に失敗: %v", err)
	}
	log.Printf("コントローラを登録しました: board_id=%s", *boardID)

	// 反映済みの半手数。受け取った手の数だけ進める
	plyCount := 0
	for {
		var result struct {
			History []game.MoveDescription `json:"history"`
		}
		if err := client.PostJSON(ctx, "/controller/poll", map[string]any{
			"board_id":  *boardID,
			"ply_count": plyCount,
		}, &result); err != nil {
			log.Fatalf("ポーリングに失敗: %v", err)
		}

		for _, desc := range result.History {
			log.Printf("手 %d（%s）: %s %s→%s", desc.PlyCount, desc.Side, desc.SAN, desc.From, desc.To)
			plyCount = desc.PlyCount
		}

		time.Sleep(*interval)
	}
}
