package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmasp-digital/triagem/internal/classification"
	"github.com/hmasp-digital/triagem/internal/cli"
	"github.com/hmasp-digital/triagem/internal/common"
	"github.com/hmasp-digital/triagem/internal/conversation"
	"github.com/hmasp-digital/triagem/internal/inbound"
	"github.com/hmasp-digital/triagem/internal/phone"
	"github.com/hmasp-digital/triagem/internal/storage"
)

func inboundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbound",
		Short: "Process and inspect inbound patient replies",
	}

	cmd.AddCommand(inboundProcessCmd())
	cmd.AddCommand(inboundLogCmd())
	return cmd
}

// auditPhone canonicalizes an operator-supplied phone argument to the E.164
// form audit rows and contexts are stored under. Input that does not
// normalize is passed through unchanged.
func auditPhone(raw string) string {
	if n := phone.Normalize(strings.TrimSuffix(raw, "@c.us")); n.Valid {
		return n.E164
	}
	return raw
}

// stdoutSender prints the reply instead of delivering it, for operating the
// pipeline from the terminal.
type stdoutSender struct{}

func (stdoutSender) Send(_ context.Context, phone, text string) error {
	fmt.Println(cli.BoxStyle.Render(fmt.Sprintf("To %s:\n\n%s", phone, text)))
	return nil
}

func inboundProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <phone> <text>",
		Short: "Run one reply through the triage pipeline",
		Long: `Run one reply through the full triage pipeline against the stored
conversation state: classification, workflow outcome, badge creation and the
automatic response (printed rather than sent).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			classifier, err := classification.NewClassifier(classification.DefaultRules())
			if err != nil {
				return fmt.Errorf("failed to build classifier: %w", err)
			}

			memory := conversation.NewStore()
			contexts, err := store.LoadContexts(ctx)
			if err != nil {
				return err
			}
			for _, c := range contexts {
				memory.Restore(c)
			}

			handler := inbound.NewHandler(classifier, memory, stdoutSender{}, store)
			result, err := handler.Process(ctx, inbound.Message{
				From:       args[0],
				Body:       args[1],
				ReceivedAt: time.Now(),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Action: %s\n", cli.BoldStyle.Render(string(result.Action)))
			if result.Classification != nil {
				printResult(*result.Classification)
			}
			if result.Outcome != nil {
				fmt.Printf("Card:   %s\n", result.Outcome.Card)
				if result.Outcome.Badge != nil {
					event, badgeErr := store.SaveBadgeEvent(ctx, storage.BadgeEvent{
						ConsultaID: result.Outcome.Action.ConsultaID,
						Phone:      result.Phone,
						Badge:      *result.Outcome.Badge,
						Card:       result.Outcome.Card,
					})
					if badgeErr != nil {
						return badgeErr
					}
					fmt.Printf("Badge:  %s (event %d)\n",
						cli.ErrorStyle.Render(result.Outcome.Badge.Label), event.ID)
				}
			}

			// Persist the updated conversation.
			if convo := memory.Get(result.Phone); convo != nil {
				if saveErr := store.SaveContext(ctx, convo); saveErr != nil {
					return saveErr
				}
			}
			return nil
		},
	}
}

func inboundLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <phone>",
		Short: "Show recent processed replies for a phone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.RecentInbound(ctx, auditPhone(args[0]), limit)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No replies recorded."))
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %-22s %s %s\n",
					rec.ReceivedAt.Format("02/01/2006 15:04"),
					rec.Action,
					cli.ConfidenceStyle(rec.Confidence).Render(fmt.Sprintf("%.2f", rec.Confidence)),
					cli.SubtleStyle.Render(rec.Body))
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum entries to show")
	return cmd
}
