package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/alchscan/internal/keys"
	"github.com/Mohsinsiddi/alchscan/internal/ui"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the Alchemy API key in the OS keychain",
}

var keySetCmd = &cobra.Command{
	Use:   "set <api-key>",
	Short: "Store the API key in the keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.TrimSpace(args[0])
		if key == "" {
			return errors.New("API key must not be empty")
		}
		if err := openKeystore().Set(keys.APIKeyRef, key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("API key stored in keychain: "+keys.Mask(key)))
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := openKeystore().Get(keys.APIKeyRef)
		if errors.Is(err, keys.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("No API key stored."))
			fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Store one with: alchscan key set <api-key>"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Alchemy API key", [][2]string{
			{"Keychain entry", keys.APIKeyRef},
			{"Key", keys.Mask(key)},
		}))
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the API key from the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := openKeystore().Delete(keys.APIKeyRef)
		if errors.Is(err, keys.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("No API key stored."))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("API key removed from keychain"))
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyDeleteCmd)
}
