package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
	"github.com/spf13/pflag"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("生成した値をゲートウェイの設定として読み込めること", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := run([]string{"--client-id", "desktop"}, &out); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}

		values := make(map[string]string)
		for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
			k, v, _ := strings.Cut(line, "=")
			values[k] = v
		}

		clients, err := oauth.ParseClients(values["OAUTH_CLIENTS"])
		if err != nil {
			t.Fatalf("ParseClients()でエラーが発生: %v", err)
		}
		if len(clients) != 1 || clients[0].ClientID != "desktop" {
			t.Errorf("clients = %+v, want desktop", clients)
		}
		key, err := oauth.DecodeSigningKey(values["OAUTH_SIGNING_KEY"])
		if err != nil {
			t.Fatalf("DecodeSigningKey()でエラーが発生: %v", err)
		}
		if len(key) != 32 {
			t.Errorf("署名鍵の長さ = %d, want 32", len(key))
		}
	})

	t.Run("実行ごとに異なる値が生成されること", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		if err := run(nil, &a); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}
		if err := run(nil, &b); err != nil {
			t.Fatalf("run()でエラーが発生: %v", err)
		}
		if a.String() == b.String() {
			t.Error("2回の実行で同じ値が生成された")
		}
		if !strings.HasPrefix(a.String(), "OAUTH_CLIENTS=claude:") {
			t.Errorf("出力 = %q, want prefix %q", a.String(), "OAUTH_CLIENTS=claude:")
		}
	})

	tests := []struct {
		name string
		args []string
	}{
		{name: "署名鍵が短い", args: []string{"--key-bytes", "16"}},
		{name: "シークレットが短い", args: []string{"--secret-bytes", "8"}},
		{name: "クライアントIDにコロンを含む", args: []string{"--client-id", "a:b"}},
		{name: "クライアントIDが空", args: []string{"--client-id", ""}},
		{name: "未知のフラグ", args: []string{"--unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合はエラーになること", func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			if err := run(tt.args, &out); err == nil {
				t.Error("run()がエラーを返すべきだが、nilが返った")
			}
		})
	}

	t.Run("--helpでErrHelpが返ること", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := run([]string{"--help"}, &out); !errors.Is(err, pflag.ErrHelp) {
			t.Errorf("run() error = %v, want ErrHelp", err)
		}
	})
}
