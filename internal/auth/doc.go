// Package auth は認証サービスの内部実装を提供する。
//
// ユーザー名とパスワードハッシュの登録、ログイン時の照合とトークン発行、
// トークンの検証を担当する。トークンは状態を持たず、検証はストアを参照しない。
package auth
