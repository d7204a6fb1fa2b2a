// Package httpclient はchessapiのHTTP APIを呼び出すクライアントを提供する。
//
// ロボット盤コントローラのCLI（boardctl）がコントローラの登録と
// ポーリングに使用する。JSONのリクエスト/レスポンス処理を統一する。
package httpclient
