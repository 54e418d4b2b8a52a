// Package notification はコメント中のメンションから通知を生成し、配信する。
//
// 通知の保存はコメントの保存と同じトランザクション内で行う（Record）。
// リアルタイムの配信はコミット後にベストエフォートで行い（Publish）、失敗しても
// 書き込みは取り消さない。通知の一覧取得、未読件数、既読管理も提供する。
package notification
