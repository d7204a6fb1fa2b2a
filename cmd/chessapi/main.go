// チェスロボット対局サーバーのエントリポイント。
// 環境変数で渡された認証情報をファイルに書き出してから、
// 対局APIとロボット盤コントローラ向けAPIを提供するHTTPサーバーを起動する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/checkmate/internal/bootstrap"
	"github.com/nao1215/checkmate/internal/chessapi"
	"github.com/nao1215/checkmate/internal/identity"
)

func main() {
	// 認証情報の実体化に失敗した場合はリスナーを開く前に終了する
	credentialsPath, err := bootstrap.Materialize()
	if err != nil {
		log.Fatalf("認証情報の実体化に失敗: %v", err)
	}

	ident, err := identity.Load(credentialsPath)
	if err != nil {
		log.Fatalf("認証情報の読み込みに失敗: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	server, err := chessapi.NewServer(port, ident)
	if err != nil {
		log.Fatalf("チェス対局サーバーの初期化に失敗: %v", err)
	}

	log.Printf("チェス対局サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("チェス対局サービスの起動に失敗: %v", err)
	}
}
