// Package profile はユーザープロフィールサービスの内部実装を提供する。
//
// 任意のキーと値を持つプロフィール文書を、生成したIDで保存・取得・更新・削除する。
// Gatewayは文書の中身を解釈せず、このサービスにそのまま転送する。
package profile
