// Package store はSQLiteへの永続化を提供する。
//
// QueriesはsqlcのQueriesと同じ形で、*sqlx.DBと*sqlx.Txのどちらの上でも動く。
// 複数テーブルへの書き込みはUnitOfWork.WithinTxで1トランザクションにまとめる。
package store
