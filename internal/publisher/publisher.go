// Package publisher implements the publish loop: each tick takes the
// oldest unpublished post from the queue and delivers it to the
// channel. A failed delivery leaves the queue untouched, so the same
// post is retried on the next tick; that is the system's only retry
// mechanism.
package publisher

import (
	"context"

	"latentfm/internal/queue"
	"latentfm/internal/storage"
	"latentfm/pkg/logx"
)

// Sender delivers a post's text to the channel.
type Sender interface {
	SendText(ctx context.Context, text string) error
}

// Publisher drives one delivery attempt per tick.
type Publisher struct {
	store  *queue.Store
	sender Sender
	audit  storage.Store // nil when auditing is disabled
	log    logx.Logger
}

func New(store *queue.Store, sender Sender, audit storage.Store, log logx.Logger) *Publisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Publisher{store: store, sender: sender, audit: audit, log: log}
}

// Tick runs one publish cycle. It never returns an error: every
// failure mode is logged and resolved by waiting for the next tick.
func (p *Publisher) Tick(ctx context.Context) {
	post, ok, err := p.store.NextUnpublished()
	if err != nil {
		p.log.Error("queue read failed", logx.Err(err))
		return
	}
	if !ok {
		p.log.Info("queue empty, waiting for new content")
		return
	}

	p.log.Info("posting", logx.Int("id", post.ID), logx.String("title", post.DisplayTitle()))
	if err := p.sender.SendText(ctx, post.Text); err != nil {
		// The post stays at the head of the queue and is retried next tick.
		p.log.Warn("send failed", logx.Int("id", post.ID), logx.Err(err))
		p.record(ctx, storage.KindSendFailed, post.ID, err.Error())
		return
	}

	found, err := p.store.MarkPublished(post.ID)
	if err != nil {
		// The message went out but the flag didn't persist; the next tick
		// would send it again. Surface this loudly.
		p.log.Error("sent but not marked published", logx.Int("id", post.ID), logx.Err(err))
		return
	}
	if !found {
		p.log.Warn("published post vanished from queue", logx.Int("id", post.ID))
	}
	p.log.Info("published", logx.Int("id", post.ID))
	p.record(ctx, storage.KindPublished, post.ID, "")
}

func (p *Publisher) record(ctx context.Context, kind string, postID int, detail string) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Append(ctx, storage.Entry{Kind: kind, PostID: postID, Detail: detail}); err != nil {
		p.log.Debug("audit append failed", logx.String("kind", kind), logx.Err(err))
	}
}
