// tomoru serves the 喫茶灯 site and its AI host chat.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "tomoru",
	Short: "喫茶灯 - tomoru - site server",
	Long: `tomoru serves the 喫茶灯 page and its AI host chat.

  tomoru serve                          Start the server
  tomoru ask "おすすめは？"             Ask the host on a running server
  tomoru events --kind chat.failure     Show recent diagnostic events`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("TOMORU_SERVER", "http://localhost:8080"), "tomoru server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
