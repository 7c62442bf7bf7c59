// Package apperr はサービス境界で使用するエラー分類を提供する。
//
// 各サービスは内部の失敗をKindに正規化し、HTTPハンドラはStatusで
// ステータスコードに変換する。内部エラーの詳細はクライアントに返さない。
package apperr
