package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"karas-agent/internal/engine"
	"karas-agent/internal/models"
	"karas-agent/internal/push"
)

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <id>",
		Short: "Fire one reminder now, due or not (still deduplicated)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			// A ledger hit means no refresh is needed to know the outcome.
			if done, err := s.db.IsFired(s.sess.User.ID, id); err != nil {
				return err
			} else if done {
				fmt.Printf("reminder %d was already fired; run clear-fired to replay it\n", id)
				return nil
			}

			coord := engine.NewCoordinator(s.sess.User.ID, s.db, s.client, buildNotifier(s.cfg))
			if err := coord.RefreshSnapshot(cmd.Context()); err != nil {
				return err
			}
			played, err := coord.Replay(id)
			if err != nil {
				return err
			}
			if !played {
				fmt.Printf("reminder %d was already fired; run clear-fired to replay it\n", id)
				return nil
			}
			fmt.Println("fired", id)
			return nil
		},
	}
}

func clearFiredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-fired",
		Short: "Wipe this user's fired history so reminders can fire again",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.db.ClearFired(s.sess.User.ID); err != nil {
				return err
			}
			fmt.Println("fired history cleared")
			return nil
		},
	}
}

func pushStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push-status",
		Short: "Attempt push registration once and report the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			notifier := buildNotifier(s.cfg)
			mgr := push.NewManager(s.cfg.PushURL, s.sess.Token, s.client, notifier, func(models.PushPayload) {})
			_ = mgr.Subscribe(cmd.Context())
			defer mgr.Close()

			status, reason := mgr.Status()
			if reason != "" {
				fmt.Printf("push: %s (%s)\n", status, reason)
			} else {
				fmt.Println("push:", status)
			}
			return nil
		},
	}
}
