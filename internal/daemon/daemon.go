package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/coinflow-app/coinflow/internal/api"
	"github.com/coinflow-app/coinflow/internal/app/cache"
	"github.com/coinflow-app/coinflow/internal/app/ledger"
	"github.com/coinflow-app/coinflow/internal/app/queue"
	"github.com/coinflow-app/coinflow/internal/app/ratelimit"
	"github.com/coinflow-app/coinflow/internal/app/rates"
	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/connectivity"
	"github.com/coinflow-app/coinflow/internal/infra/sqlite"
)

// Daemon is the assembled rewards process.
type Daemon struct {
	cfg     Config
	db      *sqlite.DB
	cache   *cache.Cache
	ledger  *ledger.Ledger
	queue   *queue.Queue
	monitor *connectivity.Monitor
	server  *http.Server
}

// New builds the daemon from its configuration.
func New(cfg Config) (*Daemon, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Ledger.Location()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := cache.New(cfg.Cache.TTLDuration())
	provider := rates.New(c, rates.Defaults())
	limiter := ratelimit.New(ratelimit.DefaultConfig(), db)

	lcfg := ledger.DefaultConfig()
	lcfg.DailyEarnCap = cfg.Ledger.DailyEarnCap
	lcfg.MaxCreditCoins = cfg.Ledger.MaxCreditCoins
	lcfg.MaxDailySpins = cfg.Ledger.MaxDailySpins
	lcfg.DayBoundary = loc
	l := ledger.New(lcfg, db, db, provider, limiter)

	q := queue.New(db)
	registerReplayHandlers(q, l)

	monitor := connectivity.New(true)

	srv := api.NewServer(l, limiter, provider, q, monitor, db)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	d := &Daemon{
		cfg:     cfg,
		db:      db,
		cache:   c,
		ledger:  l,
		queue:   q,
		monitor: monitor,
		server: &http.Server{
			Addr:    cfg.API.Addr(),
			Handler: srv.Handler(),
		},
	}
	monitor.Subscribe(func() {
		go d.drain(context.Background())
	})
	return d, nil
}

// Monitor exposes the connectivity monitor so the platform layer can
// feed it network state.
func (d *Daemon) Monitor() *connectivity.Monitor { return d.monitor }

// Run serves until the context ends, then shuts down cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	d.cache.StartSweep(d.cfg.Cache.SweepDuration())

	// Actions deferred in a previous session replay at startup.
	d.drain(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", d.cfg.API.Addr())
		errCh <- d.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("[daemon] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := d.server.Shutdown(shutdownCtx)
		d.cache.Stop()
		d.db.Close()
		return err
	case err := <-errCh:
		d.cache.Stop()
		d.db.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (d *Daemon) drain(ctx context.Context) {
	stats, err := d.queue.Drain(ctx)
	if err != nil {
		log.Printf("[daemon] queue drain: %v", err)
		return
	}
	if stats.Replayed+stats.Failed+stats.Skipped > 0 {
		log.Printf("[daemon] queue drain: %d replayed, %d failed", stats.Replayed, stats.Failed)
	}
}

// registerReplayHandlers binds each deferred action kind to its ledger
// operation. Replays re-enter the same validation path as live calls,
// so a duplicate check-in or an overspent cap is refused, not repaid.
func registerReplayHandlers(q *queue.Queue, l *ledger.Ledger) {
	q.Register(queue.ActionCheckIn, func(ctx context.Context, raw []byte) error {
		var args queue.CheckInArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		_, err := l.CheckIn(ctx, args.AccountID)
		return err
	})

	q.Register(queue.ActionSpin, func(ctx context.Context, raw []byte) error {
		var args queue.SpinArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		_, err := l.SpinWheel(ctx, args.AccountID)
		return err
	})

	q.Register(queue.ActionAddCoins, func(ctx context.Context, raw []byte) error {
		var args queue.AddCoinsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		_, err := l.AddCoins(ctx, args.AccountID, args.Amount, domain.TransactionKind(args.Kind), args.Description)
		return err
	})

	q.Register(queue.ActionTask, func(ctx context.Context, raw []byte) error {
		var args queue.TaskArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		_, err := l.CompleteTask(ctx, args.AccountID, args.TaskID, args.Reward)
		return err
	})

	q.Register(queue.ActionWithdrawal, func(ctx context.Context, raw []byte) error {
		var args queue.WithdrawalArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return err
		}
		_, err := l.RequestWithdrawal(ctx, args.AccountID, args.Method, args.AccountNumber, args.Amount)
		return err
	})
}
