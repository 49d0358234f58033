package cli

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"karas-agent/internal/engine"
	"karas-agent/internal/messages"
	"karas-agent/internal/push"
	"karas-agent/internal/scheduler"
)

func runCmd() *cobra.Command {
	var playReminder int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			notifier := buildNotifier(s.cfg)

			// The hook runs inside a trigger; it only cancels the run
			// context, the deferred Stop below tears the timers down.
			coord := engine.NewCoordinator(
				s.sess.User.ID, s.db, s.client, notifier,
				engine.WithBannerTTL(s.cfg.BannerTTL),
				engine.WithSessionExpiredHook(func() {
					log.Println(messages.SessionExpired)
					if err := s.db.DeleteSession(); err != nil {
						log.Println("logout:", err)
					}
					cancel()
				}),
			)
			sched := scheduler.New(coord, s.cfg.CheckInterval, s.cfg.PollInterval)

			// First snapshot; transient failures just wait for the poll.
			if err := coord.RefreshSnapshot(ctx); err != nil {
				log.Println("initial fetch:", err)
			}

			// Click-through from a background notification: play the
			// requested reminder once, then forget the flag.
			if playReminder > 0 {
				if played, err := coord.Replay(playReminder); err != nil {
					log.Println("play-reminder:", err)
				} else if !played {
					log.Printf("play-reminder: %d already fired", playReminder)
				}
				playReminder = 0
			}

			mgr := push.NewManager(s.cfg.PushURL, s.sess.Token, s.client, notifier, coord.HandlePush)
			go func() {
				if err := mgr.Subscribe(ctx); err != nil {
					log.Println("push registration:", err)
				}
			}()
			defer mgr.Close()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			// SIGUSR1 forces an immediate refresh+check, like the app
			// coming back into view. Accelerant only; the periodic tick
			// stays the backstop.
			wake := make(chan os.Signal, 1)
			signal.Notify(wake, syscall.SIGUSR1)
			defer signal.Stop(wake)
			go func() {
				for range wake {
					if err := coord.RefreshSnapshot(ctx); err != nil {
						log.Println("wake refresh:", err)
						continue
					}
					coord.CheckAndFire(time.Now())
				}
			}()

			coord.CheckAndFire(time.Now())

			log.Printf("karas-agent running for %s (poll %s, check %s)",
				s.sess.User.Email, s.cfg.PollInterval, s.cfg.CheckInterval)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().Int64Var(&playReminder, "play-reminder", 0,
		"fire this reminder id once at startup (deduplicated)")
	return cmd
}
