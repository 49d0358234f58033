package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL    string
	PushURL       string
	DBPath        string
	PollInterval  time.Duration
	CheckInterval time.Duration
	BannerTTL     time.Duration

	NotifyCmd  string
	SpeechCmd  string
	SpeechLang string

	TelegramToken string
	TelegramChat  int64
}

const (
	defaultPollInterval  = 60 * time.Second
	defaultCheckInterval = 10 * time.Second
	defaultBannerTTL     = 30 * time.Second
)

func Load() Config {
	_ = godotenv.Load() // KARAS_API_URL etc.

	return Config{
		APIBaseURL:    strings.TrimRight(os.Getenv("KARAS_API_URL"), "/"),
		PushURL:       os.Getenv("KARAS_PUSH_URL"),
		DBPath:        dbPath(),
		PollInterval:  duration("KARAS_POLL_INTERVAL", defaultPollInterval),
		CheckInterval: duration("KARAS_CHECK_INTERVAL", defaultCheckInterval),
		BannerTTL:     duration("KARAS_BANNER_TTL", defaultBannerTTL),
		NotifyCmd:     os.Getenv("KARAS_NOTIFY_CMD"),
		SpeechCmd:     os.Getenv("KARAS_SPEECH_CMD"),
		SpeechLang:    envOr("KARAS_SPEECH_LANG", "ar"),
		TelegramToken: telegramToken(),
		TelegramChat:  chatID(),
	}
}

func dbPath() string {
	if p := os.Getenv("KARAS_DB_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "agent.db"
	}
	return filepath.Join(home, ".karas", "agent.db")
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: bad %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// telegramToken prefers a Docker secret over the environment, same as the
// deployment this agent ships in.
func telegramToken() string {
	if data, err := os.ReadFile("/run/secrets/karas_telegram_token"); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("KARAS_TELEGRAM_TOKEN"))
}

func chatID() int64 {
	v := strings.TrimSpace(os.Getenv("KARAS_TELEGRAM_CHAT"))
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("config: bad KARAS_TELEGRAM_CHAT=%q, ignoring", v)
		return 0
	}
	return id
}
