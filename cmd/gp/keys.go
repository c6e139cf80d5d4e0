package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var keysCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(keysListCmd, keysCreateCmd, keysDeleteCmd)
	return cmd
}()

type keyEntry struct {
	KeyID     string   `json:"key_id"`
	Name      string   `json:"name"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	IsActive  bool     `json:"is_active"`
	CreatedAt string   `json:"created_at"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Keys []keyEntry `json:"api_keys"`
		}
		if err := newClient().getJSON("/api/v1/users/me/api-keys/", &result); err != nil {
			return err
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		rows := make([][]string, 0, len(result.Keys))
		for _, k := range result.Keys {
			active := "yes"
			if !k.IsActive {
				active = "no"
			}
			rows = append(rows, []string{
				k.KeyID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), active,
			})
		}
		printTable([]string{"id", "name", "prefix", "scopes", "active"}, rows)
		return nil
	},
}

var keysCreateCmd = func() *cobra.Command {
	var name string
	var scopes []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Create mints a new key. The plaintext key is printed once and cannot be recovered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"name": name}
			if len(scopes) > 0 {
				payload["scopes"] = scopes
			}

			var result struct {
				KeyID   string `json:"key_id"`
				APIKey  string `json:"api_key"`
				Message string `json:"message"`
			}
			if err := newClient().postJSON("/api/v1/users/me/api-keys/", payload, &result); err != nil {
				return err
			}

			if outputFmt == "json" || outputFmt == "yaml" {
				return printOutput(result)
			}
			fmt.Printf("Created key %s\n\n  %s\n\n%s\n", result.KeyID, result.APIKey, result.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name (required)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "Scopes (default read,write)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}()

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Delete an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().deleteJSON("/api/v1/users/me/api-keys/"+args[0], nil); err != nil {
			return err
		}
		fmt.Printf("Deleted key %s\n", args[0])
		return nil
	},
}
