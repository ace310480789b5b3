// Package config はゲートウェイの設定を環境変数と任意のYAMLファイルから読み込む。
//
// 読み込んだ設定は不変の *Config として gateway.NewServer に渡され、
// パッケージレベルのグローバル変数には保持しない。
// 環境変数はYAMLファイルの値より優先される。
package config
