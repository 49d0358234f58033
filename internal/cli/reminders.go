package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"karas-agent/internal/api"
	"karas-agent/internal/engine"
	"karas-agent/internal/models"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reminders, soonest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			rs, err := s.client.Reminders(cmd.Context())
			if err != nil {
				return err
			}
			fired, err := s.db.FiredIDs(s.sess.User.ID)
			if err != nil {
				return err
			}

			// Same ordering the engine presents after every mutation.
			engine.SortByDueTime(rs)

			now := time.Now()
			table := uitable.New()
			table.AddRow("ID", "WHEN", "TITLE", "REPEAT", "STATE")
			for _, r := range rs {
				table.AddRow(r.ID, r.RemindAt, r.Title, r.Repeat, state(r, fired, now))
			}
			fmt.Println(table)
			return nil
		},
	}
}

func state(r models.Reminder, fired map[int64]bool, now time.Time) string {
	if fired[r.ID] {
		return "fired"
	}
	at, err := r.DueAt()
	if err != nil {
		return "bad time"
	}
	if !at.After(now) {
		return "due"
	}
	return ""
}

func addCmd() *cobra.Command {
	var title, body, at, repeat, notes string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return errors.New("--title is required")
			}
			if at == "" {
				return errors.New("--at is required (RFC3339, e.g. 2026-09-01T18:30:00+03:00)")
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			r, err := s.client.CreateReminder(cmd.Context(), api.ReminderFields{
				Title:    &title,
				Body:     &body,
				RemindAt: &at,
				Repeat:   &repeat,
				Notes:    &notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created reminder %d (%s at %s)\n", r.ID, r.Title, r.RemindAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "reminder title (spoken first)")
	cmd.Flags().StringVar(&body, "body", "", "reminder body (spoken after the title)")
	cmd.Flags().StringVar(&at, "at", "", "scheduled instant")
	cmd.Flags().StringVar(&repeat, "repeat", "", "advisory repeat label")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func editCmd() *cobra.Command {
	var title, body, at, repeat, notes string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update fields of a reminder; omitted flags are left as-is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return err
			}

			var f api.ReminderFields
			if cmd.Flags().Changed("title") {
				f.Title = &title
			}
			if cmd.Flags().Changed("body") {
				f.Body = &body
			}
			if cmd.Flags().Changed("at") {
				f.RemindAt = &at
			}
			if cmd.Flags().Changed("repeat") {
				f.Repeat = &repeat
			}
			if cmd.Flags().Changed("notes") {
				f.Notes = &notes
			}
			if f == (api.ReminderFields{}) {
				return errors.New("nothing to change")
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			r, err := s.client.UpdateReminder(cmd.Context(), id, f)
			if err != nil {
				return err
			}
			fmt.Printf("updated reminder %d (%s at %s)\n", r.ID, r.Title, r.RemindAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&body, "body", "", "new body")
	cmd.Flags().StringVar(&at, "at", "", "new scheduled instant")
	cmd.Flags().StringVar(&repeat, "repeat", "", "new repeat label")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a reminder",
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

			if err := s.client.DeleteReminder(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Println("deleted", id)
			return nil
		},
	}
}
