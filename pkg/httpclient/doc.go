// Package httpclient は上流サービスへのHTTP通信を行うクライアントを提供する。
//
// Gatewayがリクエストを各サービスに転送する際に使用する。
// 1つのClientは1つの上流ベースURLに束縛され、呼び出しはリトライしない。
package httpclient
