// Package token は署名付きベアラートークンの発行と検証を提供する。
//
// トークンは状態を持たず、署名と埋め込まれた有効期限だけで検証する。
// 失効リストは持たないため、有効期限前に無効化することはできない。
package token
