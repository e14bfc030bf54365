package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"starter/internal/harness"
	pkgstrings "starter/pkg/strings"
)

var (
	listScenario string
	listTags     []string
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list <scenario-file-or-directory>",
	Short: "List and validate scenarios without running them",
	Long: `List loads scenario definitions the same way run does, so it doubles as a
validation step, and prints the scenarios selected by the filters.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listScenario, "scenario", "", "Only list scenarios whose name contains this value")
	listCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Only list scenarios with one of these tags")
}

func runList(cmd *cobra.Command, args []string) error {
	scenarios, err := harness.LoadScenarios(args[0])
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	selected := harness.FilterScenarios(scenarios, harness.RunConfiguration{Scenario: listScenario, Tags: listTags})
	if len(selected) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No scenarios selected from %s\n", args[0])
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("COMMAND"),
		text.FgHiCyan.Sprint("TIMEOUT"),
		text.FgHiCyan.Sprint("TAGS"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, s := range selected {
		name := s.Name
		if s.Skip {
			name = text.FgHiBlack.Sprint(name + " (skipped)")
		}
		timeout := "default"
		if s.Timeout > 0 {
			timeout = s.Timeout.String()
		}
		t.AppendRow(table.Row{name, s.Command, timeout, strings.Join(s.Tags, ","), pkgstrings.Truncate(s.Description, pkgstrings.DefaultCellMaxLen)})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d scenario(s) selected\n", len(selected), len(scenarios))
	return nil
}
