package cmd

import (
	"errors"
	"os"

	"github.com/phux/apiunit/internal/logger"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apiunit",
	Short: "smoke test a JSON API",
	Long: `smoke test a JSON API.

The target server is read from the environment:
  PYM_SERVER_HOST, PYM_SERVER_PORT, PYM_JWT_TOKEN
  (or KLUE_SERVER_HOST, KLUE_SERVER_PORT, KLUE_JWT_TOKEN with --legacy)
  NO_SSL_CHECK disables TLS certificate verification.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if !errors.Is(err, ErrFindings) {
		logger.Logger().Errorln(err)
	}
	os.Exit(1)
}

func init() {
	rootCmd.AddCommand(newCheckCmd(), newOperationsCmd())
}
