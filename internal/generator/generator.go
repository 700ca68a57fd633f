// Package generator implements the generate loop: each tick asks the
// text model for one new channel post, seeded with the most recent
// queued posts as negative context, and appends the result to the
// queue. The component only exists when a generation credential is
// configured.
package generator

import (
	"context"
	"strings"

	"latentfm/internal/queue"
	"latentfm/internal/storage"
	"latentfm/pkg/logx"
)

const generatedTitle = "Generated"

// Completer is the narrow surface of the text-generation collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Config bounds one generation request.
type Config struct {
	HistorySize int // recent posts used as negative context
	MaxTokens   int
	Temperature float64
}

// Generator drives one generation attempt per tick.
type Generator struct {
	cfg   Config
	store *queue.Store
	llm   Completer
	audit storage.Store // nil when auditing is disabled
	log   logx.Logger
}

func New(cfg Config, store *queue.Store, llm Completer, audit storage.Store, log logx.Logger) *Generator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Generator{cfg: cfg, store: store, llm: llm, audit: audit, log: log}
}

// Tick runs one generation cycle. Failures are logged and the queue is
// left untouched; the loop simply tries again at the next interval.
func (g *Generator) Tick(ctx context.Context) {
	recent, err := g.store.RecentTexts(g.cfg.HistorySize)
	if err != nil {
		g.log.Error("queue read failed", logx.Err(err))
		return
	}

	text, err := g.llm.Complete(ctx, systemPrompt, buildUserPrompt(recent), g.cfg.MaxTokens, g.cfg.Temperature)
	if err != nil {
		g.log.Warn("generation failed", logx.Err(err))
		g.record(ctx, storage.KindGenerateFailed, 0, err.Error())
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.log.Warn("generation returned empty text")
		g.record(ctx, storage.KindGenerateFailed, 0, "empty text")
		return
	}

	post, err := g.store.Append(generatedTitle, text)
	if err != nil {
		g.log.Error("queue append failed", logx.Err(err))
		return
	}
	g.log.Info("generated post queued", logx.Int("id", post.ID), logx.Int("chars", len([]rune(text))))
	g.record(ctx, storage.KindGenerated, post.ID, "")
}

// buildUserPrompt appends the recent posts as a do-not-repeat block.
func buildUserPrompt(recent []string) string {
	if len(recent) == 0 {
		return userPrompt
	}
	var b strings.Builder
	b.WriteString(userPrompt)
	b.WriteString("\n\n")
	b.WriteString(recentContextHeader)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(recent, "\n\n---\n\n"))
	return b.String()
}

func (g *Generator) record(ctx context.Context, kind string, postID int, detail string) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Append(ctx, storage.Entry{Kind: kind, PostID: postID, Detail: detail}); err != nil {
		g.log.Debug("audit append failed", logx.String("kind", kind), logx.Err(err))
	}
}
