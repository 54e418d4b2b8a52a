// Package realtime はプロジェクト単位・ユーザー単位のグループへイベントを配信するゲートウェイを提供する。
//
// Hubは接続レジストリで、接続ごとに1本の送信キューを持つ。キューへの投入はブロックしないため、
// 配信は書き込み処理と独立したベストエフォートになる。配信が失われても、クライアントは
// 一覧APIや未読件数APIを再取得すれば正しい状態に戻れる。
//
// サーバー側の転送はServer-Sent Events（StreamHandler）で、クライアント側は
// 再接続とグループへの再参加を行うClientを使う。
package realtime
