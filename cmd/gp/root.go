package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	outputFmt string
)

var rootCmd = &cobra.Command{
	Use:   "gp",
	Short: "CLI for the golden path registry",
	Long: `gp publishes, fetches and manages golden paths on a registry server.

Golden paths are referenced as @namespace/name or @namespace/name:version;
without a version the latest one is used. Reads work without credentials,
mutations need an API key (--api-key or the GP_API_KEY environment variable).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Registry server URL (default: GP_SERVER env or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authenticated operations (default: GP_API_KEY env)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedServer returns the effective server URL.
// Priority: --server flag > GP_SERVER env > localhost default.
func resolvedServer() string {
	if serverURL != "" {
		return serverURL
	}
	if s := os.Getenv("GP_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// resolvedKey returns the effective API key, possibly empty.
func resolvedKey() string {
	if apiKey != "" {
		return apiKey
	}
	return os.Getenv("GP_API_KEY")
}

// parseRef splits @namespace/name[:version]. An absent version means latest.
func parseRef(ref string) (namespace, name, version string, err error) {
	if !strings.HasPrefix(ref, "@") {
		return "", "", "", fmt.Errorf("invalid reference %q: must start with @namespace", ref)
	}
	rest := ref
	if idx := strings.LastIndexByte(rest, ':'); idx > 0 {
		version = rest[idx+1:]
		rest = rest[:idx]
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid reference %q: expected @namespace/name[:version]", ref)
	}
	return parts[0], parts[1], version, nil
}
