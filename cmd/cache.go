package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Mohsinsiddi/alchscan/internal/store"
	"github.com/Mohsinsiddi/alchscan/internal/ui"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the page cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many pages are cached",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cachePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("No cache at "+path))
			return nil
		}
		pc, err := store.OpenPageCache(path, cfg.Network, nil, nil)
		if err != nil {
			return err
		}
		defer pc.Close()

		n, err := pc.Len()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Page cache", [][2]string{
			{"Path", path},
			{"Pages", fmt.Sprintf("%d", n)},
		}))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached page",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cachePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("No cache at "+path))
			return nil
		}
		pc, err := store.OpenPageCache(path, cfg.Network, nil, nil)
		if err != nil {
			return err
		}
		defer pc.Close()

		if err := pc.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Page cache cleared: "+path))
		return nil
	},
}

func cachePath() (string, error) {
	if cfg.Cache == "" {
		return "", errors.New("no cache configured: set the cache key or pass --cache <path>")
	}
	return cfg.Cache, nil
}

func init() {
	cacheCmd.PersistentFlags().String("cache", "", "bbolt page cache path")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
