// Package httpclient はトラッカーAPIを呼び出すJSON HTTPクライアントを提供する。
//
// リアルタイムクライアントがグループへの参加・離脱や一覧APIの再取得に使う。
// Bearerトークンの付与、タイムアウト、エラーレスポンスの扱いを統一する。
package httpclient
