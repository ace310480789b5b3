// Package apierror はゲートウェイが返すエラーの閉じた分類を提供する。
//
// 各エラーはHTTPステータスと機械可読なエラーコードを持ち、
// レスポンスボディは {"error": コード, "error_description": 説明} の形式になる。
package apierror
