package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/tock-watcher/internal/browser"
	"github.com/example/tock-watcher/internal/config"
	"github.com/example/tock-watcher/internal/db"
	"github.com/example/tock-watcher/internal/history"
	"github.com/example/tock-watcher/internal/logging"
	"github.com/example/tock-watcher/internal/migrate"
	"github.com/example/tock-watcher/internal/notify"
	"github.com/example/tock-watcher/internal/watcher"
)

// app holds what every command builds from the environment.
type app struct {
	cfg config.Config
	log *zap.Logger
	db  *db.DB
}

func (ro *rootOptions) load() (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if ro.restaurant != "" {
		cfg.Restaurant = ro.restaurant
	}
	log, err := logging.New(cfg.Production())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.log.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) telegram() *notify.Telegram {
	return notify.New(notify.Options{
		APIURL: a.cfg.TelegramAPIURL,
		Token:  a.cfg.TelegramToken,
		ChatID: a.cfg.TelegramChatID,
		Logger: a.log.Named("telegram"),
	})
}

// openHistory opens the probe store, or returns nil when DATABASE_URL is unset.
func (a *app) openHistory(ctx context.Context) (*history.Repo, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, nil
	}
	if a.db == nil {
		d, err := db.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := d.Ping(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
		a.db = d
	}
	return history.NewRepo(a.db), nil
}

func (a *app) watcherOptions() (watcher.Options, error) {
	qh, err := watcher.ParseQuietHours(a.cfg.QuietHours)
	if err != nil {
		return watcher.Options{}, err
	}
	return watcher.Options{
		Restaurant:        a.cfg.Restaurant,
		BaseURL:           a.cfg.BaseURL,
		Email:             a.cfg.Email,
		Password:          a.cfg.Password,
		TargetTime:        a.cfg.TargetTime,
		Horizon:           a.cfg.HorizonMonths,
		WaitTimeout:       a.cfg.WaitTimeout,
		QuietHours:        qh,
		LoginFailureFatal: a.cfg.LoginFatal,
		RestartOnError:    a.cfg.RestartOnError,
		MaxRestarts:       a.cfg.MaxRestarts,
		RestartDelay:      a.cfg.RestartDelay,
	}, nil
}

func (a *app) browserFactory() browser.Factory {
	return browser.NewFactory(browser.Options{
		Headless: a.cfg.BrowserHeadless,
		ExecPath: a.cfg.BrowserExecPath,
		Logger:   a.log.Named("chrome"),
	})
}

// newWatcher builds a Watcher for one-off commands; n may be nil when nothing is sent.
func (a *app) newWatcher(n watcher.Notifier) (*watcher.Watcher, error) {
	if err := a.cfg.RequireRestaurant(); err != nil {
		return nil, err
	}
	opts, err := a.watcherOptions()
	if err != nil {
		return nil, err
	}
	return watcher.New(opts, a.browserFactory(), n, a.log), nil
}

func parsePartySize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid party size %q (want a positive integer)", s)
	}
	return n, nil
}
