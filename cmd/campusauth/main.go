// Command campusauth は学生・教員・管理者向け認証バックエンドを起動する。
//
// サブコマンド:
//
//	serve        APIサーバー（デフォルト）
//	worker       期限切れセッションのクリーンアップ
//	migrate      データベースマイグレーション
//	healthcheck  /health への疎通確認（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/campusauth/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "campusauth: %v\n", err)
		os.Exit(1)
	}
}
