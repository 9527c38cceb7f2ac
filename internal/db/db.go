package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"labourlaw-rag/internal/config"
)

type ChatSession struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`
	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull"`
	SessionID     string    `bun:"session_id,notnull"`
	Title         string    `bun:"title,notnull"`
	Starred       bool      `bun:"starred,notnull,default:false"`
	CreatedOn     string    `bun:"created_on"`
	LastUpdated   string    `bun:"last_updated"`
	DeletedAt     time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type ChatMessage struct {
	bun.BaseModel   `bun:"table:chat_messages,alias:cm"`
	ID              int64     `bun:"id,pk,autoincrement"`
	UserID          string    `bun:"user_id,notnull"`
	SessionID       string    `bun:"session_id,notnull"`
	Role            string    `bun:"role,notnull"`
	MessageID       string    `bun:"message_id"`
	StateID         string    `bun:"state_id"`
	StateName       string    `bun:"state_name"`
	PerspectiveID   string    `bun:"perspective_id"`
	PerspectiveName string    `bun:"perspective_name"`
	Message         string    `bun:"message,type:text"`
	Timestamp       string    `bun:"timestamp"`
	FeedbackStatus  string    `bun:"feedback_status"`
	DeletedAt       time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver: "pgdriver" (bun's
// native driver, the default) or "pq".
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*ChatSession)(nil), (*ChatMessage)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	_, err := db.NewCreateIndex().
		Model((*ChatMessage)(nil)).
		Index("chat_messages_session_idx").
		IfNotExists().
		Column("user_id", "session_id").
		Exec(ctx)
	return err
}

// DropTables removes the session tables

func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*ChatMessage)(nil), (*ChatSession)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
