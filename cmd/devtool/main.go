// Command devtool runs the order assistant locally against a YAML menu and
// in-memory sessions, either as an HTTP server or as a terminal chat.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose  bool
	envFile  string
	menuFile string
)

var rootCmd = &cobra.Command{
	Use:   "devtool",
	Short: "Run the order assistant locally",
	Long: `Run the order assistant against a local YAML menu.

Sessions live in memory and placed orders are written to the log.
Settings are read from the environment, optionally loaded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
	rootCmd.PersistentFlags().StringVarP(&menuFile, "menu", "m", "", "Menu YAML file (or set MENU_FILE env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("devtool failed", "err", err)
		os.Exit(1)
	}
}
