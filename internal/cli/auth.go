package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"karas-agent/internal/api"
	"karas-agent/internal/config"
	"karas-agent/internal/models"
	"karas-agent/internal/storage"
)

func loginCmd() *cobra.Command {
	var email, password, name string
	var register bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in (or --register) and cache the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.APIBaseURL == "" {
				return errors.New("KARAS_API_URL is not set")
			}

			var err error
			if email == "" {
				if email, err = prompt("email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptSecret("password: "); err != nil {
					return err
				}
			}

			client := api.New(cfg.APIBaseURL, "")
			ctx := cmd.Context()

			sess, err := login(ctx, client, register, email, password, name)
			if err != nil {
				return err
			}

			db, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SaveSession(sess); err != nil {
				return err
			}

			who := sess.User.Name
			if who == "" {
				who = sess.User.Email
			}
			// Swap the fresh token onto the client for the welcome fetch.
			client.SetToken(sess.Token)
			if rs, err := client.Reminders(ctx); err == nil {
				fmt.Printf("logged in as %s (%d reminders)\n", who, len(rs))
			} else {
				fmt.Println("logged in as", who)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name (with --register)")
	cmd.Flags().BoolVar(&register, "register", false, "create a new account")
	return cmd
}

func login(ctx context.Context, client *api.Client, register bool, email, password, name string) (*models.Session, error) {
	if register {
		return client.Register(ctx, email, password, name)
	}
	return client.Login(ctx, email, password)
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the cached session and this user's fired history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := storage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			sess, err := db.LoadSession()
			if err != nil {
				return err
			}
			if sess == nil {
				fmt.Println("already logged out")
				return nil
			}
			// A later login by a different user must start from a clean
			// ledger, and this user's ledger must not leak to them.
			if err := db.ClearFired(sess.User.ID); err != nil {
				return err
			}
			if err := db.DeleteSession(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
