// Package storage provides an optional audit trail of publish and
// generation outcomes. The queue file remains the source of truth; the
// audit log only records what happened and when, so operators can
// answer "did post 17 actually go out" without scrolling logs.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"latentfm/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Event kinds recorded by the loops.
const (
	KindPublished      = "published"
	KindSendFailed     = "send_failed"
	KindGenerated      = "generated"
	KindGenerateFailed = "generate_failed"
)

// Config configures the audit store. An empty Path disables it.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Entry is one recorded outcome. Keep it compact and schema-stable.
type Entry struct {
	At     time.Time
	Kind   string
	PostID int
	Detail string
}

// Store is the audit persistence API used by the loops.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) when auditing is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
