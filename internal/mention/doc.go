// Package mention はコメント本文からのメンション抽出と、ユーザーへの解決を提供する。
//
// メンションは @word または @"quoted name" の形式で書く。
// 抽出は純粋関数で、ストアやネットワークには触れない。
package mention
