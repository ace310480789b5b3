// auditlogはゲートウェイの監査ログ（AUDIT_DB_PATH）を新しい順に表示する。
// ゲートウェイの稼働中でも読み取れる。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nao1215/ticktick-mcp-gateway/internal/audit"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/event"
	"github.com/spf13/pflag"
)

// openTimeout はデータベースを開いて読み取るまでの期限。
const openTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.LookupEnv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "auditlog: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, lookup func(string) (string, bool)) error {
	defaultPath, _ := lookup("AUDIT_DB_PATH")

	var (
		dbPath string
		limit  int
	)
	flagSet := pflag.NewFlagSet("auditlog", pflag.ContinueOnError)
	flagSet.SetOutput(stdout)
	flagSet.StringVar(&dbPath, "db", defaultPath, "監査ログのSQLiteファイル（既定はAUDIT_DB_PATH）")
	flagSet.IntVarP(&limit, "limit", "n", 20, "表示する件数")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if dbPath == "" {
		return errors.New("--dbまたはAUDIT_DB_PATHを指定してください")
	}
	if limit <= 0 {
		return fmt.Errorf("--limitは1以上を指定してください: %d", limit)
	}
	// 存在しないパスを指定した場合に空のデータベースを作らない
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("監査ログを開けません: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	store, err := audit.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		line, err := formatEvent(ev)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// formatEvent はイベントを1行のテキストにする。
func formatEvent(ev *event.Event) (string, error) {
	head := fmt.Sprintf("%s %-19s route=%s client_id=%q request_id=%s",
		ev.CreatedAt.UTC().Format(time.RFC3339), ev.EventType, ev.Route, ev.ClientID, ev.RequestID)

	switch ev.EventType {
	case event.TypeAccessGranted:
		d, err := event.DecodeData[event.AccessGrantedData](ev)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s method=%s status=%d duration_ms=%d", head, d.Method, d.Status, d.DurationMillis), nil
	case event.TypeAccessDenied:
		d, err := event.DecodeData[event.AccessDeniedData](ev)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s method=%s reason=%s remote_addr=%s", head, d.Method, d.Reason, d.RemoteAddr), nil
	case event.TypeUpstreamUnavailable:
		d, err := event.DecodeData[event.UpstreamUnavailableData](ev)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s method=%s reason=%q", head, d.Method, d.Reason), nil
	default:
		return fmt.Sprintf("%s data=%s", head, ev.Data), nil
	}
}
