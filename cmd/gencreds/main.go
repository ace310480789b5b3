// gencredsはゲートウェイ用のクライアントシークレットと署名鍵を生成する。
// 出力はそのまま環境変数ファイルに貼り付けられる形式になっている。
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/ticktick-mcp-gateway/pkg/oauth"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "gencreds: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var (
		clientID    string
		secretBytes int
		keyBytes    int
	)
	flagSet := pflag.NewFlagSet("gencreds", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVar(&clientID, "client-id", "claude", "OAuthクライアントID")
	flagSet.IntVar(&secretBytes, "secret-bytes", 32, "クライアントシークレットの乱数バイト数")
	flagSet.IntVar(&keyBytes, "key-bytes", 32, "署名鍵のバイト数（32以上）")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if clientID == "" || strings.ContainsAny(clientID, ":, ") {
		return fmt.Errorf("--client-idに空文字列や':'、','、空白は使えません: %q", clientID)
	}
	if keyBytes < oauth.MinSigningKeyBytes {
		return fmt.Errorf("--key-bytesは%d以上を指定してください: %d", oauth.MinSigningKeyBytes, keyBytes)
	}

	secret, err := oauth.GenerateClientSecret(secretBytes)
	if err != nil {
		return fmt.Errorf("シークレットの生成に失敗: %w", err)
	}
	key, err := oauth.GenerateSigningKey(keyBytes)
	if err != nil {
		return fmt.Errorf("署名鍵の生成に失敗: %w", err)
	}

	fmt.Fprintf(stdout, "OAUTH_CLIENTS=%s:%s\n", clientID, secret)
	fmt.Fprintf(stdout, "OAUTH_SIGNING_KEY=%s\n", oauth.EncodeSigningKey(key))
	return nil
}
