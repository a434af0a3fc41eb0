package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmasp-digital/triagem/internal/cli"
	"github.com/hmasp-digital/triagem/internal/conversation"
)

func contextsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "Inspect and maintain conversation contexts",
	}

	cmd.AddCommand(contextsListCmd())
	cmd.AddCommand(contextsStatsCmd())
	cmd.AddCommand(contextsCleanCmd())
	return cmd
}

func contextsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			contexts, err := store.LoadContexts(ctx)
			if err != nil {
				return err
			}
			if len(contexts) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No conversations stored."))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-17s %-18s %-8s %-8s %s", "Phone", "Status", "Pending", "Failed", "Updated")))
			for _, c := range contexts {
				fmt.Println(cli.TableCellStyle.Render(fmt.Sprintf("%-17s %-18s %-8d %-8d %s",
					c.Phone, c.Status, len(c.Pending), c.FailedAttempts,
					c.UpdatedAt.Format("02/01/2006 15:04"))))
			}
			return nil
		},
	}
}

func contextsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			contexts, err := store.LoadContexts(ctx)
			if err != nil {
				return err
			}

			memory := conversation.NewStore()
			for _, c := range contexts {
				memory.Restore(c)
			}
			stats := memory.Stats()

			fmt.Println(cli.TitleStyle.Render("Conversation stats"))
			fmt.Printf("  Total:            %d\n", stats.Total)
			fmt.Printf("  Awaiting reply:   %d\n", stats.WithPending)
			fmt.Printf("  Ambiguous:        %d\n", stats.WithAmbiguity)
			fmt.Printf("  With reschedules: %d\n", stats.WithReschedules)
			return nil
		},
	}
}

func contextsCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove conversations idle beyond the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			maxAge, err := cmd.Flags().GetDuration("max-age")
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			contexts, err := store.LoadContexts(ctx)
			if err != nil {
				return err
			}

			memory := conversation.NewStore()
			for _, c := range contexts {
				memory.Restore(c)
			}
			removed := memory.CleanStale(maxAge)

			// Drop the rows the in-memory sweep evicted.
			kept := make(map[string]bool)
			for _, c := range memory.All() {
				kept[c.Phone] = true
			}
			for _, c := range contexts {
				if kept[c.Phone] {
					continue
				}
				if err := store.DeleteContext(ctx, c.Phone); err != nil {
					return err
				}
			}

			slog.Info("Cleaned stale conversations", "removed", removed, "max_age", maxAge)
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Removed %d stale conversations", removed)))
			return nil
		},
	}

	cmd.Flags().Duration("max-age", 7*24*time.Hour, "remove conversations idle longer than this")
	return cmd
}
