package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/example/tock-watcher/internal/notify"
	"github.com/example/tock-watcher/internal/tock"
)

type Config struct {
	Restaurant string
	Email      string
	Password   string
	BaseURL    string `validate:"required,url"`

	// search
	TargetTime    string        `validate:"required,datetime=15:04"`
	HorizonMonths int           `validate:"min=1,max=24"`
	WaitTimeout   time.Duration `validate:"min=1s"`

	// notifier
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string `validate:"required,url"`

	BrowserHeadless bool
	BrowserExecPath string

	// watch policy
	QuietHours     string
	LoginFatal     bool
	RestartOnError bool
	MaxRestarts    int           `validate:"min=0"`
	RestartDelay   time.Duration `validate:"min=1s"`

	DatabaseURL string
	AppEnv      string `validate:"oneof=development production"`
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func FromEnv() (Config, error) {
	cfg := Config{
		Restaurant:      getenv("TOCK_RESTAURANT", ""),
		Email:           getenv("TOCK_EMAIL", os.Getenv("USERNAME")),
		Password:        getenv("TOCK_PASSWORD", os.Getenv("PASSWORD")),
		BaseURL:         getenv("TOCK_BASE_URL", tock.DefaultBaseURL),
		TargetTime:      getenv("TOCK_TARGET_TIME", "17:00"),
		TelegramToken:   getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:  getenv("TELEGRAM_CHAT_ID", ""),
		TelegramAPIURL:  getenv("TELEGRAM_API_URL", notify.DefaultAPIURL),
		BrowserExecPath: getenv("BROWSER_EXEC_PATH", ""),
		QuietHours:      getenv("WATCH_QUIET_HOURS", ""),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		AppEnv:          getenv("APP_ENV", "development"),
	}

	var err error
	if cfg.HorizonMonths, err = getint("TOCK_HORIZON_MONTHS", 8); err != nil {
		return Config{}, err
	}
	waitSec, err := getint("WAIT_TIMEOUT_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.WaitTimeout = time.Duration(waitSec) * time.Second
	if cfg.MaxRestarts, err = getint("WATCH_MAX_RESTARTS", 0); err != nil {
		return Config{}, err
	}
	restartSec, err := getint("WATCH_RESTART_DELAY_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.RestartDelay = time.Duration(restartSec) * time.Second
	if cfg.BrowserHeadless, err = getbool("BROWSER_HEADLESS", true); err != nil {
		return Config{}, err
	}
	if cfg.LoginFatal, err = getbool("WATCH_LOGIN_FATAL", true); err != nil {
		return Config{}, err
	}
	if cfg.RestartOnError, err = getbool("WATCH_RESTART_ON_ERROR", true); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// RequireRestaurant checks the settings every browser command needs.
func (c Config) RequireRestaurant() error {
	if strings.TrimSpace(c.Restaurant) == "" {
		return fmt.Errorf("restaurant is required (--restaurant or TOCK_RESTAURANT)")
	}
	return nil
}

func (c Config) RequireLogin() error {
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("TOCK_EMAIL and TOCK_PASSWORD are required")
	}
	return nil
}

func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) Production() bool { return c.AppEnv == "production" }

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getint(k string, def int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", k)
	}
	return n, nil
}

func getbool(k string, def bool) (bool, error) {
	v := getenv(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", k)
	}
	return b, nil
}
