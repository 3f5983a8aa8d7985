package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Mohsinsiddi/alchscan/internal/config"
	"github.com/Mohsinsiddi/alchscan/internal/keys"
	"github.com/Mohsinsiddi/alchscan/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.KeyValueBlock("Current Configuration", configPairs(cfg)))

		source := cfg.File()
		if source == "" {
			source = "none (defaults and environment only)"
		}
		fmt.Fprintln(out, ui.Meta("Config directory: "+cfg.Dir()))
		fmt.Fprintln(out, ui.Meta("Config file: "+source))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(cfg.Dir())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Config written to "+path))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Set the target with: address: 0x... in that file, then run alchscan collect"))
		return nil
	},
}

func configPairs(c *config.Config) [][2]string {
	apiKey := keys.Mask(c.APIKey)
	if apiKey == "" {
		apiKey = "(keychain)"
	}
	address := c.Address
	if address == "" {
		address = "(unset)"
	}
	cache := c.Cache
	if cache == "" {
		cache = "(off)"
	}
	maxPages := "unlimited"
	if c.MaxPages > 0 {
		maxPages = strconv.Itoa(c.MaxPages)
	}
	return [][2]string{
		{"api_key", apiKey},
		{"address", address},
		{"network", c.Network},
		{"base_url", c.BaseURL},
		{"concurrency", strconv.Itoa(c.Concurrency)},
		{"max_records", strconv.Itoa(c.MaxRecords)},
		{"page_size", strconv.Itoa(c.PageSize)},
		{"output", c.Output},
		{"direction", c.Direction},
		{"categories", strings.Join(c.Categories, ",")},
		{"split_categories", strconv.FormatBool(c.SplitCategories)},
		{"with_metadata", strconv.FormatBool(c.WithMetadata)},
		{"strict", strconv.FormatBool(c.Strict)},
		{"max_pages", maxPages},
		{"timeout", c.Timeout.String()},
		{"cache", cache},
		{"metrics_file", c.MetricsFile},
		{"log_level", c.LogLevel},
		{"log_format", c.LogFormat},
	}
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
