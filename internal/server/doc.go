// Package server はトラッカーのHTTP APIを提供する。
//
// プロジェクト、作業項目、コメント、メンション通知のREST APIと、
// リアルタイム配信のストリームを1つのGinルーターにまとめる。
// /health と /auth/dev-token 以外はJWT認証が必要。
package server
