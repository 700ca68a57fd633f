// Package app wires the queue store, the Telegram sender, the
// generation client, and the two polling loops into one runnable unit.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"latentfm/internal/config"
	"latentfm/internal/generator"
	"latentfm/internal/llm"
	"latentfm/internal/publisher"
	"latentfm/internal/queue"
	"latentfm/internal/storage"
	telegram "latentfm/internal/transport/telegram"
	"latentfm/pkg/logx"
)

// App owns the component lifecycles. Publisher and generator run as
// independent cron jobs sharing the queue store; they coordinate only
// through the persisted queue.
type App struct {
	cfg *config.Config
	log logx.Logger

	logCloser io.Closer
	store     *queue.Store
	sender    *telegram.Sender
	audit     storage.Store
	pub       *publisher.Publisher
	gen       *generator.Generator

	c          *cron.Cron
	genEntryID cron.EntryID

	// kicks tracks manually fired jobs (the startup generation), which
	// cron's Stop drain does not know about.
	kicks sync.WaitGroup
}

// New builds the full component graph. It talks to the Telegram API
// once (token validation) but starts no loops.
func New(cfg *config.Config) (*App, error) {
	log, logCloser := logx.New(logx.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	sender, err := telegram.New(telegram.Config{
		Token:   cfg.BotToken,
		Channel: cfg.ChannelID,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, fmt.Errorf("telegram: %w", err)
	}

	store := queue.NewStore(cfg.QueueFile, log.With(logx.String("comp", "queue")))

	audit, err := storage.Open(storage.Config{Path: cfg.AuditDB, BusyTimeout: time.Second},
		log.With(logx.String("comp", "storage")))
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, fmt.Errorf("audit store: %w", err)
	}
	if audit != nil {
		log.Info("audit log enabled", logx.String("path", cfg.AuditDB))
	}

	a := &App{
		cfg:       cfg,
		log:       log.With(logx.String("comp", "app")),
		logCloser: logCloser,
		store:     store,
		sender:    sender,
		audit:     audit,
		pub:       publisher.New(store, sender, audit, log.With(logx.String("comp", "publisher"))),
	}

	if cfg.GeneratorEnabled() {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Title:   "Latent Space FM",
		})
		a.gen = generator.New(generator.Config{
			HistorySize: cfg.HistorySize,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, store, client, audit, log.With(logx.String("comp", "generator")))
	} else {
		a.log.Info("no generation credential configured; generator disabled")
	}

	return a, nil
}

// Start verifies the queue is readable and launches both loops.
// A corrupt queue file is a refusal to start, not something to
// overwrite with an empty snapshot.
func (a *App) Start(ctx context.Context) error {
	unpublished, err := a.store.CountUnpublished()
	if err != nil {
		return err
	}
	a.log.Info("startup", logx.Int("unpublished", unpublished), logx.String("queue", a.store.Path()))

	clog := cronLogger{log: a.log.With(logx.String("comp", "cron"))}
	a.c = cron.New(cron.WithChain(
		cron.Recover(clog),
		// Ticks within one loop are strictly sequential; a slow delivery
		// or completion call swallows the ticks it overlaps.
		cron.SkipIfStillRunning(clog),
	))

	if _, err := a.c.AddJob(everySpec(a.cfg.PostInterval), cron.FuncJob(func() {
		a.pub.Tick(ctx)
	})); err != nil {
		return fmt.Errorf("schedule publisher: %w", err)
	}

	if a.gen != nil {
		id, err := a.c.AddJob(everySpec(a.cfg.GenerateInterval), cron.FuncJob(func() {
			a.gen.Tick(ctx)
		}))
		if err != nil {
			return fmt.Errorf("schedule generator: %w", err)
		}
		a.genEntryID = id
	}

	a.c.Start()
	a.log.Info("loops started",
		logx.Duration("post_interval", a.cfg.PostInterval),
		logx.Bool("generator", a.gen != nil),
		logx.Duration("generate_interval", a.cfg.GenerateInterval))

	// The first generation fires immediately rather than waiting a full
	// interval. Going through the wrapped job keeps the overlap guard.
	if a.gen != nil {
		job := a.c.Entry(a.genEntryID).WrappedJob
		a.kicks.Add(1)
		go func() {
			defer a.kicks.Done()
			job.Run()
		}()
	}

	return nil
}

// Stop winds the loops down: no new ticks, bounded wait for running
// ones, then resource release.
func (a *App) Stop(ctx context.Context) {
	a.log.Info("stopping")

	if a.c != nil {
		done := a.c.Stop().Done()
		select {
		case <-done:
		case <-ctx.Done():
			a.log.Warn("shutdown deadline reached with ticks still running")
		}
	}

	// The startup generation runs outside cron's tracking; wait for it
	// too before releasing the sender and the audit store.
	kicked := make(chan struct{})
	go func() {
		a.kicks.Wait()
		close(kicked)
	}()
	select {
	case <-kicked:
	case <-ctx.Done():
		a.log.Warn("shutdown deadline reached with the startup tick still running")
	}

	if a.sender != nil {
		a.sender.Stop()
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn("audit store close failed", logx.Err(err))
		}
	}

	a.log.Info("stopped")
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func everySpec(d time.Duration) string {
	return fmt.Sprintf("@every %s", d.String())
}

// cronLogger adapts logx to the cron.Logger interface. Cron's own
// chatter stays at debug; job panics surface as errors.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, logx.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, logx.Err(err), logx.Any("kv", keysAndValues))
}
