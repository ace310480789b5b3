package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
)

// ClientCredential は登録済みクライアントのIDとシークレットの組。
type ClientCredential struct {
	// ClientID はクライアントの一意識別子。
	ClientID string
	// ClientSecret はクライアントのシークレット。ログに出力してはならない。
	ClientSecret string
}

// ParseClients は "id1:secret1,id2:secret2" 形式の設定値を解析する。
// 空要素は無視する。コロンの無い組、空のIDやシークレット、重複IDはエラーとする。
// シークレットには2つ目以降のコロンを含めてよい。
func ParseClients(value string) ([]ClientCredential, error) {
	var creds []ClientCredential
	seen := make(map[string]struct{})
	for i, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, secret, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("%d番目のクライアント定義に':'がありません", i+1)
		}
		id = strings.TrimSpace(id)
		if id == "" || secret == "" {
			return nil, fmt.Errorf("%d番目のクライアント定義のIDまたはシークレットが空です", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("クライアントID %q が重複しています", id)
		}
		seen[id] = struct{}{}
		creds = append(creds, ClientCredential{ClientID: id, ClientSecret: secret})
	}
	return creds, nil
}

// CredentialStore は登録済みクライアントの資格情報を保持する。
// 生成後は変更されないため、複数のゴルーチンから安全に参照できる。
type CredentialStore struct {
	// digests はクライアントIDごとのシークレットのSHA-256ダイジェスト。
	digests map[string][sha256.Size]byte
}

// dummyDigest は未登録IDの照合に使う。登録済みIDと同じ比較コストをかけるため。
var dummyDigest = sha256.Sum256([]byte("ticktick-mcp-gateway/unknown-client"))

// NewCredentialStore は資格情報の一覧からストアを生成する。
func NewCredentialStore(creds []ClientCredential) (*CredentialStore, error) {
	digests := make(map[string][sha256.Size]byte, len(creds))
	for _, c := range creds {
		if c.ClientID == "" || c.ClientSecret == "" {
			return nil, fmt.Errorf("クライアントIDとシークレットは必須です")
		}
		if _, dup := digests[c.ClientID]; dup {
			return nil, fmt.Errorf("クライアントID %q が重複しています", c.ClientID)
		}
		digests[c.ClientID] = sha256.Sum256([]byte(c.ClientSecret))
	}
	return &CredentialStore{digests: digests}, nil
}

// Authenticate はクライアントIDとシークレットの組が登録済みか判定する。
// シークレットは固定長のダイジェスト同士を定数時間で比較する。
func (s *CredentialStore) Authenticate(clientID, clientSecret string) bool {
	want, known := s.digests[clientID]
	if !known {
		want = dummyDigest
	}
	got := sha256.Sum256([]byte(clientSecret))
	match := subtle.ConstantTimeCompare(want[:], got[:]) == 1
	return known && match
}

// Len は登録済みクライアント数を返す。
func (s *CredentialStore) Len() int {
	return len(s.digests)
}
