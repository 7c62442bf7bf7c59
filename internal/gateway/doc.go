// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、/auth/* を認証サービスに、
// /users/* をプロフィールサービスに転送する。転送時はフレーミング用の
// ヘッダーを取り除き、上流のステータスとボディをそのまま返す。
// 上流に到達できない場合だけ、ゲートウェイ自身が503を返す。
package gateway
