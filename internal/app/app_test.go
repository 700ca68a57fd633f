package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"latentfm/internal/config"
	"latentfm/internal/generator"
	"latentfm/internal/publisher"
	"latentfm/internal/queue"
	"latentfm/pkg/logx"
)

type nopSender struct{}

func (nopSender) SendText(context.Context, string) error { return nil }

func newTestApp(t *testing.T, queuePath string) *App {
	t.Helper()
	store := queue.NewStore(queuePath, logx.Nop())
	return &App{
		cfg: &config.Config{
			PostInterval:     time.Minute,
			GenerateInterval: time.Hour,
		},
		log:   logx.Nop(),
		store: store,
		pub:   publisher.New(store, nopSender{}, nil, logx.Nop()),
	}
}

// Without a generation credential the generator is never constructed;
// the publisher is scheduled regardless.
func TestStartWithoutGenerator(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, filepath.Join(t.TempDir(), "queue.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer a.Stop(context.Background())

	if got := len(a.c.Entries()); got != 1 {
		t.Fatalf("scheduled %d jobs, want 1 (publisher only)", got)
	}
}

// slowCompleter signals when a completion starts and holds it until
// released, so tests can observe the startup tick mid-flight.
type slowCompleter struct {
	entered chan struct{}
	release chan struct{} // nil returns immediately
}

func (f *slowCompleter) Complete(ctx context.Context, _, _ string, _ int, _ float64) (string, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "свежий пост", nil
}

func withGenerator(a *App, llm generator.Completer) *App {
	a.cfg.OpenRouterAPIKey = "sk-test"
	a.gen = generator.New(generator.Config{}, a.store, llm, nil, logx.Nop())
	return a
}

// The first generation fires right after Start, not a full interval
// (here one hour) later.
func TestStartKicksGeneratorImmediately(t *testing.T) {
	t.Parallel()
	llm := &slowCompleter{entered: make(chan struct{})}
	a := withGenerator(newTestApp(t, filepath.Join(t.TempDir(), "queue.json")), llm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	select {
	case <-llm.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("startup generation did not fire after Start")
	}
	a.Stop(context.Background())

	q, err := a.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 1 || q[0].Title != "Generated" {
		t.Fatalf("queue after startup generation = %+v, want one generated post", q)
	}
}

// Stop must drain the startup generation along with the cron jobs: the
// generated post has to be in the queue by the time Stop returns.
func TestStopWaitsForStartupGeneration(t *testing.T) {
	t.Parallel()
	llm := &slowCompleter{entered: make(chan struct{}), release: make(chan struct{})}
	a := withGenerator(newTestApp(t, filepath.Join(t.TempDir(), "queue.json")), llm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	<-llm.entered

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(llm.release)
	}()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	a.Stop(stopCtx)

	q, err := a.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 1 {
		t.Fatalf("Stop returned before the startup tick finished; queue = %+v", q)
	}
}

func TestStartRefusesCorruptQueue(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("][ definitely not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := newTestApp(t, path)
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail on corrupt queue file")
	}
}

func TestEverySpecParses(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{60 * time.Second, time.Hour, 90 * time.Minute, 30 * time.Second} {
		spec := everySpec(d)
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			t.Fatalf("ParseStandard(%q) error: %v", spec, err)
		}
		now := time.Now()
		if got := sched.Next(now).Sub(now); got > d || got < d-time.Second {
			t.Fatalf("spec %q fires after %v, want ~%v", spec, got, d)
		}
	}
}
