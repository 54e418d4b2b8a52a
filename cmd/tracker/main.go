// トラッカーサービスのエントリポイント。
// プロジェクトの作業項目とコメントを管理し、メンション通知とタスクの更新をリアルタイムに配信する。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
