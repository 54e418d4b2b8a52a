// Package comment は作業項目へのコメントの投稿・一覧・削除を提供する。
//
// 投稿では本文のメンションを解決し、コメントと通知を1つのトランザクションで保存してから、
// コミット後に通知をリアルタイム配信する。
package comment
