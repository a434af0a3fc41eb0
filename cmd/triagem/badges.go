package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hmasp-digital/triagem/internal/badge"
	"github.com/hmasp-digital/triagem/internal/cli"
)

func badgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Manage operator badges",
	}

	cmd.AddCommand(badgesListCmd())
	cmd.AddCommand(badgesResolveCmd())
	return cmd
}

func badgesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open badges awaiting operator action",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.OpenBadges(ctx)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println(cli.SuccessStyle.Render("No open badges. All caught up!"))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-6s %-12s %-17s %-12s %-24s %s", "ID", "Consulta", "Phone", "Badge", "Card", "Created")))
			for _, e := range events {
				label := cli.ErrorStyle.Render(e.Badge.Label)
				if e.Badge.Color == badge.ColorGreen {
					label = cli.SuccessStyle.Render(e.Badge.Label)
				}
				fmt.Printf("%-6d %-12d %-17s %-12s %-24s %s\n",
					e.ID, e.ConsultaID, e.Phone, label, e.Card,
					e.CreatedAt.Format("02/01/2006 15:04"))
			}
			return nil
		},
	}
}

func badgesResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a badge's operator action as completed",
		Long: `Mark a badge's operator action as completed, flipping the red badge to its
green counterpart (Desmarcar -> Desmarcada, Reagendar -> Reagendada).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid badge event ID %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.OpenBadges(ctx)
			if err != nil {
				return err
			}
			var next *badge.Badge
			for _, e := range events {
				if e.ID != id {
					continue
				}
				switch e.Badge.Label {
				case badge.Desmarcar.Label:
					next = &badge.Desmarcada
				case badge.Reagendar.Label:
					next = &badge.Reagendada
				}
				break
			}
			if next == nil {
				return fmt.Errorf("no open badge event with ID %d", id)
			}

			if err := store.ResolveBadge(ctx, id, *next); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Badge %d resolved to %s", id, next.Label)))
			return nil
		},
	}
}
