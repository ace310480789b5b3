package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nao1215/ticktick-mcp-gateway/pkg/event"
	"github.com/nao1215/ticktick-mcp-gateway/pkg/migration"

	// SQLiteドライバ
	_ "modernc.org/sqlite"
)

// timeLayout は文字列比較で時系列順に並ぶ固定幅の時刻書式。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder は監査イベントの記録先を表す。
type Recorder interface {
	Record(ctx context.Context, ev *event.Event) error
}

// Nop は何も記録しないRecorder。
type Nop struct{}

// Record は何もせずnilを返す。
func (Nop) Record(context.Context, *event.Event) error { return nil }

// Store はSQLiteに監査イベントを保存するRecorder。
type Store struct {
	db *sql.DB
}

// Open はpathのSQLiteデータベースを開き、マイグレーションを適用する。
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("監査ログのパスが空です")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("監査ログDBの接続に失敗: %w", err)
	}
	// SQLiteは書き込みが直列化されるため接続を1本に絞る
	sqlDB.SetMaxOpenConns(1)

	s, err := NewStore(ctx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewStore は既存の接続からStoreを生成し、マイグレーションを適用する。
func NewStore(ctx context.Context, sqlDB *sql.DB) (*Store, error) {
	if _, err := migration.Run(ctx, sqlDB, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("監査ログのマイグレーションに失敗: %w", err)
	}
	return &Store{db: sqlDB}, nil
}

// Record は監査イベントを1件保存する。
func (s *Store) Record(ctx context.Context, ev *event.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, request_id, client_id, route, event_type, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RequestID, ev.ClientID, ev.Route, string(ev.EventType), string(ev.Data),
		ev.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("監査イベントの保存に失敗: %w", err)
	}
	return nil
}

// Recent は新しい順に最大limit件の監査イベントを返す。
func (s *Store) Recent(ctx context.Context, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, client_id, route, event_type, data, created_at
		 FROM audit_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("監査イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*event.Event
	for rows.Next() {
		var (
			ev        event.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.RequestID, &ev.ClientID, &ev.Route, &eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("監査イベントの読み取りに失敗: %w", err)
		}
		ev.EventType = event.Type(eventType)
		ev.Data = []byte(data)
		ev.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("作成日時のパースに失敗: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Logged はRecorderをラップし、記録に失敗した場合にログへ出力する。
// 監査ログの失敗でリクエスト処理を止めないために使う。
type Logged struct {
	Recorder Recorder
}

// Record は内部のRecorderに記録し、失敗をログに残す。常にnilを返す。
func (l Logged) Record(ctx context.Context, ev *event.Event) error {
	if err := l.Recorder.Record(ctx, ev); err != nil {
		log.Printf("[Audit] 監査イベントの保存に失敗 event=%s request_id=%s: %v", ev.EventType, ev.RequestID, err)
	}
	return nil
}
