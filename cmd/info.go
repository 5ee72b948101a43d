package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"s3sync/internal/pathspec"
	"s3sync/internal/s3client"
	"s3sync/pkg/utils"
)

var infoCmd = &cobra.Command{
	Use:   "info <s3_path>",
	Short: "Count the objects and bytes a sync would download",
	Long: `List an S3 bucket or prefix and print the number of objects, their total size
and the most recent modification time as JSON. Nothing is downloaded.`,
	Example: `  # Inspect a prefix before syncing it
  s3sync info s3://my-bucket/photos

  # Verbose output
  s3sync info s3://my-bucket --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	spec, err := pathspec.Parse(args[0])
	if err != nil {
		return fail(err, "info")
	}

	client, err := s3client.New(clientConfig(cmd))
	if err != nil {
		return fail(err, "info")
	}

	timeout, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if isVerbose(cmd) {
		cmd.PrintErrf("Listing %s\n", spec)
	}

	info, err := client.GetListingInfo(ctx, spec)
	if err != nil {
		return fail(err, "info")
	}

	if err := utils.WriteJSON(cmd.OutOrStdout(), info); err != nil {
		return fail(err, "info")
	}
	return nil
}

func init() {
	infoCmd.Flags().Int("timeout", 300, "Timeout in seconds for the operation")
}
