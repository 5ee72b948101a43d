package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"s3sync/config"
	"s3sync/pkg/utils"
)

var (
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "s3sync",
	Short: "Mirror an S3 prefix into a local directory",
	Long: `s3sync copies every object under an S3 bucket or prefix into a local directory tree.
Keys that collide with existing files are resolved by moving the file aside as a .bak backup.
Configuration is loaded from .env file or environment variables`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if isVerbose(cmd) {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		}
	},
}

// Execute runs the command line. Errors raised before a command runs, such as
// a wrong argument count or an unknown flag, are printed with the usage text.
func Execute(config *config.Config) error {
	cfg = config
	cmd, err := rootCmd.ExecuteC()
	if err != nil && !errors.As(err, new(*printedError)) {
		utils.PrintError(err, cmd.Name())
		cmd.PrintErrln(cmd.UsageString())
	}
	return err
}

// printedError marks an error a command has already printed.
type printedError struct {
	err error
}

func (e *printedError) Error() string { return e.err.Error() }
func (e *printedError) Unwrap() error { return e.err }

// fail prints err as the JSON error of command and marks it as printed.
func fail(err error, command string) error {
	utils.PrintError(err, command)
	return &printedError{err: err}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(infoCmd)

	rootCmd.PersistentFlags().String("region", "", "Override region from config")
	rootCmd.PersistentFlags().String("endpoint", "", "Override S3 endpoint URL from config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}

// clientConfig returns the loaded config with command line overrides applied.
func clientConfig(cmd *cobra.Command) *config.Config {
	region, _ := cmd.Flags().GetString("region")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	return withOverrides(cfg, region, endpoint, concurrency)
}

func withOverrides(base *config.Config, region, endpoint string, concurrency int) *config.Config {
	conf := config.Config{}
	if base != nil {
		conf = *base
	}
	if region != "" {
		conf.Region = region
	}
	if endpoint != "" {
		conf.ApiURL = endpoint
	}
	if concurrency > 0 {
		conf.Concurrency = concurrency
	}
	return &conf
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
