package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-oidc-agent/internal/config"
)

var (
	flagAccountsDir string
	flagLogLevel    string
	flagNoBanner    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentd",
		Short: "OIDC credential agent daemon",
		Long: "agentd holds decrypted OIDC account configurations in memory and\n" +
			"acquires access tokens on demand without exposing long-term secrets.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	rootCmd.Flags().StringVar(&flagAccountsDir, "accounts-dir", "", "directory of decrypted account files (overrides ACCOUNTS_DIR)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.Flags().BoolVar(&flagNoBanner, "no-banner", false, "suppress the startup banner")

	scopesCmd := &cobra.Command{
		Use:   "scopes <issuer-url>",
		Short: "Print the scopes an issuer advertises",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.New()
			setupLogging(c)
			scopes, err := lookupScopes(c, args[0])
			if err != nil {
				return err
			}
			for _, scope := range scopes {
				fmt.Println(scope)
			}
			return nil
		},
	}
	rootCmd.AddCommand(scopesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	c := config.New()

	setupLogging(c)
	if !flagNoBanner {
		displayAppname(c.GetAppName())
	}

	return runAgent(c)
}

func setupLogging(c config.Config) {
	level := flagLogLevel
	if level == "" {
		level = c.GetLogLevel()
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
