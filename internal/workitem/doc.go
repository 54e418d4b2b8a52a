// Package workitem はEpic / UserStory / Taskの3階層の作業項目を管理する。
//
// 親子関係は子から親への参照だけを保存し、作成時に「親は1つ上の種類で同じプロジェクト」を検証する。
// 子を持つ作業項目の削除は拒否し、部分木をまとめて消すことはしない。
package workitem
