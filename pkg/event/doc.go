// Package event は保護されたルートへのアクセス結果を表す監査イベントを定義する。
package event
