package cli

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"karas-agent/internal/api"
	"karas-agent/internal/config"
	"karas-agent/internal/messages"
	"karas-agent/internal/models"
	"karas-agent/internal/notify"
	"karas-agent/internal/storage"
)

// New builds the karas-agent command tree.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "karas-agent",
		Short:         "Reminder agent for the Karas server: polls, dedups, notifies and speaks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		runCmd(),
		loginCmd(),
		logoutCmd(),
		listCmd(),
		addCmd(),
		editCmd(),
		rmCmd(),
		replayCmd(),
		clearFiredCmd(),
		pushStatusCmd(),
	)
	return root
}

// session bundles everything a logged-in command needs.
type session struct {
	cfg    config.Config
	db     *storage.DB
	sess   *models.Session
	client *api.Client
}

func openSession() (*session, error) {
	cfg := config.Load()
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s, err := db.LoadSession()
	if err != nil {
		db.Close()
		return nil, err
	}
	if s == nil {
		db.Close()
		return nil, errors.New(messages.NotLoggedIn)
	}
	if api.TokenExpired(s.Token) {
		_ = db.DeleteSession()
		db.Close()
		return nil, errors.New(messages.SessionExpired)
	}
	if cfg.APIBaseURL == "" {
		db.Close()
		return nil, errors.New("KARAS_API_URL is not set")
	}
	return &session{
		cfg:    cfg,
		db:     db,
		sess:   s,
		client: api.New(cfg.APIBaseURL, s.Token),
	}, nil
}

func (s *session) close() { s.db.Close() }

// notifier assembles the render sinks from config. Always returns a usable
// Multi; an empty one renders nothing but never errors fatally.
func buildNotifier(cfg config.Config) notify.Multi {
	sinks := notify.Multi{
		&notify.Desktop{Command: cfg.NotifyCmd},
		&notify.Speech{Command: cfg.SpeechCmd, Lang: cfg.SpeechLang},
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChat)
		if err != nil {
			log.Println("telegram sink disabled:", err)
		} else {
			sinks = append(sinks, tg)
		}
	}
	if !sinks.Available() {
		fmt.Println("warning:", messages.PushPermission)
	}
	return sinks
}
