package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// MinSigningKeyBytes は署名鍵の最小バイト数。
const MinSigningKeyBytes = 32

// GenerateSigningKey はn バイトのランダムな署名鍵を生成する。
func GenerateSigningKey(n int) ([]byte, error) {
	if n < MinSigningKeyBytes {
		return nil, fmt.Errorf("署名鍵は%dバイト以上が必要です: %d", MinSigningKeyBytes, n)
	}
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("乱数の生成に失敗: %w", err)
	}
	return key, nil
}

// DecodeSigningKey はbase64文字列の署名鍵をデコードする。
// 標準形式とURLセーフ形式、パディングの有無のいずれも受け付ける。
func DecodeSigningKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	var key []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		key, err = enc.DecodeString(encoded)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("署名鍵がbase64形式ではありません")
	}
	if len(key) < MinSigningKeyBytes {
		return nil, fmt.Errorf("署名鍵は%dバイト以上が必要です: %d", MinSigningKeyBytes, len(key))
	}
	return key, nil
}

// EncodeSigningKey は署名鍵を設定ファイル用のbase64文字列にする。
func EncodeSigningKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// GenerateClientSecret はnバイトの乱数からURLセーフなクライアントシークレットを生成する。
func GenerateClientSecret(n int) (string, error) {
	if n < 16 {
		return "", fmt.Errorf("シークレットは16バイト以上が必要です: %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("乱数の生成に失敗: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
