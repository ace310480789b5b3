// Package httpclient は上流のMCPサーバーへ接続するためのHTTPクライアントを提供する。
//
// SSEのような長時間のストリームを中継するため、クライアント全体のタイムアウトは設定せず、
// 接続確立とレスポンスヘッダー待ちにのみ期限を設ける。
// リバースプロキシにはTransportを、死活確認にはPingを使用する。
package httpclient
