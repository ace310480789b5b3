// Package audit は保護されたルートへのアクセス結果を記録する監査ログを提供する。
//
// 記録するのはアクセスの許可・拒否と上流到達不能の3種類のみで、
// トークンの発行や資格情報、トークン文字列は一切保存しない。
// 永続化先はSQLiteで、AUDIT_DB_PATHが未設定の場合はNopを使用する。
package audit
