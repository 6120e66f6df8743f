package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	goGuard "github.com/MrEthical07/goGuard"
)

var lintMinSeverity string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := engineConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(viewOf(cfg)); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Report risky configuration choices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := engineConfig()
		if err != nil {
			return err
		}

		floor, err := parseSeverity(lintMinSeverity)
		if err != nil {
			return err
		}
		result := cfg.Lint().AtLeast(floor)

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.Style().Format.Footer = text.FormatDefault
		t.AppendHeader(table.Row{"Severity", "Code", "Message"})
		for _, w := range result {
			t.AppendRow(table.Row{w.Severity.String(), w.Code, w.Message})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d warning(s)", len(result))})
		t.Render()

		if len(result.AtLeast(goGuard.LintHigh)) > 0 {
			fmt.Fprintln(os.Stderr, "high severity findings present")
			os.Exit(3)
		}
		return nil
	},
}

func parseSeverity(s string) (goGuard.LintSeverity, error) {
	switch s {
	case "", "info":
		return goGuard.LintInfo, nil
	case "warn":
		return goGuard.LintWarn, nil
	case "high":
		return goGuard.LintHigh, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

func init() {
	configLintCmd.Flags().StringVar(&lintMinSeverity, "min-severity", "info", "lowest severity to report (info, warn, high)")
	configCmd.AddCommand(configPrintCmd, configLintCmd)
}
