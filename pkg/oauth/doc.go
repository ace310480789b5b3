// Package oauth はOAuth2クライアントクレデンシャルフローのトークン発行と検証を提供する。
//
// 登録済みクライアントの資格情報ストア、HS256で署名した自己完結型のBearerトークンの
// 発行、Authorizationヘッダーからのトークン検証を担当する。トークンはどこにも保存されず、
// 署名鍵と有効期限だけで正当性が決まる。そのため有効期限前に失効させることはできない。
package oauth
