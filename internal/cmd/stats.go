package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/jwt"
)

var (
	statsServer string
	statsWindow time.Duration
	statsOutput string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counter store statistics from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := tokenManager()
		if err != nil {
			return err
		}
		if tokens == nil {
			return fmt.Errorf("admin.secret (GOGUARD_ADMIN_SECRET) is not set")
		}
		token, err := tokens.Issue("goguard-cli", jwt.RoleAdmin)
		if err != nil {
			return err
		}

		u := strings.TrimRight(statsServer, "/") + "/admin/stats?window=" + url.QueryEscape(statsWindow.String())
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() // nolint:errcheck // read-only body
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("stats request failed: %s", resp.Status)
		}

		var stats goGuard.Statistics
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}

		if statsOutput == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderStats(stats))
		return nil
	},
}

// renderStats formats a snapshot as a summary line followed by two tables:
// per dimension, then per action.
func renderStats(s goGuard.Statistics) string {
	summary := fmt.Sprintf("goguard statistics at %s (window %s)\n", s.GeneratedAt.Format(time.RFC3339), s.Window)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Dimension", "Tracked", "Locked"})
	for _, dim := range sortedKeys(s.ByDimension) {
		t.AppendRow(table.Row{dim, s.ByDimension[dim], s.LockedBy[dim]})
	}
	t.AppendFooter(table.Row{"total", s.Tracked, s.Locked})

	a := table.NewWriter()
	a.SetStyle(table.StyleRounded)
	a.Style().Format.Footer = text.FormatDefault
	a.AppendHeader(table.Row{"Action", "Tracked"})
	for _, action := range sortedKeys(s.ByAction) {
		a.AppendRow(table.Row{action, s.ByAction[action]})
	}
	a.AppendFooter(table.Row{"active in window", s.ActiveInWindow})

	return summary + t.Render() + "\n" + a.Render() + "\n"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	statsCmd.Flags().StringVar(&statsServer, "server", "http://localhost:8080", "base URL of a running goguard server")
	statsCmd.Flags().DurationVar(&statsWindow, "window", 15*time.Minute, "activity window")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "output format (table, json)")
}
