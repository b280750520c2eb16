package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	LogMode string

	TelegramBotToken string
	AllowedUsers     map[int64]struct{}
	PollTimeout      time.Duration
	DownloadTimeout  time.Duration
	InlineImages     bool

	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIBaseURL        string
	OpenAIConnectTimeout time.Duration
	OpenAIRequestTimeout time.Duration
	OpenAITotalTimeout   time.Duration

	PromptsFile            string
	PipelineMaxConcurrency int
	Autostart              bool
	ShutdownTimeout        time.Duration
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// loader копит ошибки, чтобы при старте показать все проблемы конфигурации сразу.
type loader struct {
	errs []error
}

func (l *loader) required(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env %s", k))
	}
	return v
}

func (l *loader) duration(k string, def time.Duration) time.Duration {
	raw := getEnv(k, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.errs = append(l.errs, fmt.Errorf("env %s: invalid duration %q", k, raw))
		return def
	}
	return d
}

func (l *loader) boolean(k string, def bool) bool {
	raw := getEnv(k, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("env %s: invalid bool %q", k, raw))
		return def
	}
	return b
}

func (l *loader) integer(k string, def int) int {
	raw := getEnv(k, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		l.errs = append(l.errs, fmt.Errorf("env %s: invalid non-negative int %q", k, raw))
		return def
	}
	return n
}

// ParseAllowList разбирает "123, 456" в множество ID отправителей.
func ParseAllowList(raw string) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad sender id %q: %w", part, err)
		}
		out[id] = struct{}{}
	}
	if len(out) == 0 {
		return nil, errors.New("allow-list is empty")
	}
	return out, nil
}

// LoadDotEnv подмешивает в окружение переменные из path (обычно .env). Уже
// заданные переменные не перетираются, отсутствие файла ошибкой не считается.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dotenv %s: %w", path, err)
	}
	return nil
}

// Load читает конфигурацию из окружения. Любая ошибка фатальна для старта процесса.
func Load() (*Config, error) {
	l := &loader{}
	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		LogMode: getEnv("LOG_MODE", "production"),

		TelegramBotToken: l.required("TELEGRAM_BOT_TOKEN"),
		PollTimeout:      l.duration("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
		DownloadTimeout:  l.duration("TELEGRAM_DOWNLOAD_TIMEOUT", 60*time.Second),
		InlineImages:     l.boolean("TELEGRAM_INLINE_IMAGES", true),

		OpenAIAPIKey:         l.required("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAIConnectTimeout: l.duration("OPENAI_CONNECT_TIMEOUT", 10*time.Second),
		OpenAIRequestTimeout: l.duration("OPENAI_REQUEST_TIMEOUT", 60*time.Second),
		OpenAITotalTimeout:   l.duration("OPENAI_TOTAL_TIMEOUT", 90*time.Second),

		PromptsFile:            getEnv("PROMPTS_FILE", ""),
		PipelineMaxConcurrency: l.integer("PIPELINE_MAX_CONCURRENCY", 8),
		Autostart:              l.boolean("BOT_AUTOSTART", true),
		ShutdownTimeout:        l.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if raw := l.required("TELEGRAM_ALLOWED_USERS"); raw != "" {
		allowed, err := ParseAllowList(raw)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("env TELEGRAM_ALLOWED_USERS: %w", err))
		}
		cfg.AllowedUsers = allowed
	}

	if cfg.OpenAITotalTimeout < cfg.OpenAIRequestTimeout {
		l.errs = append(l.errs, fmt.Errorf("OPENAI_TOTAL_TIMEOUT (%s) must not be shorter than OPENAI_REQUEST_TIMEOUT (%s)",
			cfg.OpenAITotalTimeout, cfg.OpenAIRequestTimeout))
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
