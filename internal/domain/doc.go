// Package domain はプロジェクト管理のドメインモデルとエラー分類を提供する。
//
// 作業項目（Epic / UserStory / Task）の階層、コメント、メンション通知、
// ユーザーとプロジェクトを表す型を含む。永続化やHTTPには依存しない。
package domain
