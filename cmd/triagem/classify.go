// Package main contains the triagem CLI commands.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hmasp-digital/triagem/internal/classification"
	"github.com/hmasp-digital/triagem/internal/cli"
	"github.com/hmasp-digital/triagem/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify a patient reply",
		Long: `Classify a patient reply against the intent pipeline.

With a text argument, classifies that single reply and prints the result.
With --file, classifies one reply per line and prints a summary.

Examples:
  triagem classify "1"                             # Direct number, no context
  triagem classify "nao vou poder ir" -c confirmacao
  triagem classify --file replies.txt -c desmarcacao`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().StringP("context", "c", "", "conversation context (confirmacao, desmarcacao)")
	cmd.Flags().StringP("file", "f", "", "classify one reply per line from a file")

	_ = viper.BindPFlag("classify.context", cmd.Flags().Lookup("context"))
	_ = viper.BindPFlag("classify.file", cmd.Flags().Lookup("file"))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctxName := viper.GetString("classify.context")
	file := viper.GetString("classify.file")

	flowCtx, err := parseContextType(ctxName)
	if err != nil {
		return err
	}

	classifier, err := classification.NewClassifier(classification.DefaultRules())
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	if file != "" {
		return classifyFile(classifier, file, flowCtx)
	}

	if len(args) == 0 {
		return fmt.Errorf("provide a reply text or --file")
	}

	result := classifier.Classify(args[0], flowCtx)
	printResult(result)
	return nil
}

func parseContextType(name string) (model.ContextType, error) {
	switch name {
	case "":
		return model.ContextNone, nil
	case string(model.ContextConfirmacao):
		return model.ContextConfirmacao, nil
	case string(model.ContextDesmarcacao):
		return model.ContextDesmarcacao, nil
	default:
		return model.ContextNone, fmt.Errorf("invalid context %q (use confirmacao or desmarcacao)", name)
	}
}

func printResult(result model.Result) {
	fmt.Println(cli.TitleStyle.Render("Classification"))
	fmt.Printf("  Intent:     %s\n", cli.BoldStyle.Render(string(result.Intent)))
	fmt.Printf("  Confidence: %s\n", cli.ConfidenceStyle(result.Confidence).Render(fmt.Sprintf("%.2f", result.Confidence)))
	fmt.Printf("  Method:     %s\n", result.Method)
	if result.Normalized != "" {
		fmt.Printf("  Normalized: %s\n", cli.SubtleStyle.Render(result.Normalized))
	}
	if len(result.Matches) > 0 {
		fmt.Printf("  Matches:    %s\n", cli.SubtleStyle.Render(strings.Join(result.Matches, ", ")))
	}
	if result.NeedsConfirmation {
		fmt.Println(cli.WarningStyle.Render("  Needs confirmation before acting"))
	}
}

func classifyFile(classifier *classification.Classifier, path string, flowCtx model.ContextType) error {
	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if len(lines) == 0 {
		return fmt.Errorf("input file has no replies")
	}

	bar := progressbar.NewOptions(len(lines),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Classifying replies..."),
	)

	byIntent := make(map[model.Intent]int)
	byMethod := make(map[model.Method]int)
	var needConfirmation int
	for _, line := range lines {
		result := classifier.Classify(line, flowCtx)
		byIntent[result.Intent]++
		byMethod[result.Method]++
		if result.NeedsConfirmation {
			needConfirmation++
		}
		_ = bar.Add(1)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Classified %d replies", len(lines))))

	intents := make([]model.Intent, 0, len(byIntent))
	for intent := range byIntent {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return byIntent[intents[i]] > byIntent[intents[j]] })
	for _, intent := range intents {
		fmt.Printf("  %-20s %d\n", intent, byIntent[intent])
	}

	fmt.Println(cli.SubtleStyle.Render("By method:"))
	methods := make([]model.Method, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	for _, method := range methods {
		fmt.Printf("  %-24s %d\n", method, byMethod[method])
	}

	if needConfirmation > 0 {
		fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("%d replies need confirmation before acting", needConfirmation)))
	}
	return nil
}
