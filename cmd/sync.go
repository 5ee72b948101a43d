package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"s3sync/config"
	"s3sync/internal/models"
	"s3sync/internal/pathspec"
	"s3sync/internal/progress"
	"s3sync/internal/s3client"
	"s3sync/internal/syncer"
	"s3sync/internal/transfer"
	"s3sync/pkg/utils"
)

const bytesPerMB = 1024 * 1024

var syncCmd = &cobra.Command{
	Use:   "sync <s3_path> <local_path>",
	Short: "Mirror a bucket or prefix into a local directory",
	Long: `Download every object under an S3 bucket or prefix into a local directory.

The remote path has the form s3://bucket[/prefix]. Keys are mapped below the local path
with the prefix removed. When a key needs a directory where a file already exists, the
file is renamed to <name>.<token>.bak and the directory is created in its place.

A failed object is reported and skipped; the run continues with the remaining objects.
The summary is printed as JSON once the run completes.`,
	Example: `  # Mirror a whole bucket
  s3sync sync s3://my-bucket ./mirror

  # Mirror a prefix with 8 parallel downloads
  s3sync sync s3://my-bucket/photos/2024 ./photos --concurrency 8

  # Use an S3-compatible endpoint
  s3sync sync s3://backups ./backups --endpoint http://localhost:9000 --region us-east-1`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	spec, err := pathspec.Parse(args[0])
	if err != nil {
		return fail(err, "sync")
	}

	conf := clientConfig(cmd)
	client, err := s3client.New(conf)
	if err != nil {
		return fail(err, "sync")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quiet, _ := cmd.Flags().GetBool("quiet")
	result, err := syncTo(ctx, client.API(), conf, spec, args[1], cmd.ErrOrStderr(), quiet, isVerbose(cmd))
	return printResult(cmd.OutOrStdout(), result, err)
}

// printResult prints whatever result exists, including the partial result of
// an interrupted run, followed by the error if there is one.
func printResult(out io.Writer, result *models.SyncResult, err error) error {
	if result != nil {
		if writeErr := utils.WriteJSON(out, result); writeErr != nil && err == nil {
			err = writeErr
		}
	}
	if err != nil {
		return fail(err, "sync")
	}
	return nil
}

// syncTo runs one sync with progress written to out.
func syncTo(ctx context.Context, api syncer.API, conf *config.Config, spec pathspec.PathSpec, localPath string, out io.Writer, quiet, verbose bool) (*models.SyncResult, error) {
	printConfiguration(out, spec, localPath, conf)

	var reporters progress.Multi
	if !quiet {
		console := progress.NewAsync(progress.NewConsole(out, progress.DefaultStep), 256)
		defer console.Close()
		reporters = append(reporters, console)
	}
	if verbose {
		reporters = append(reporters, progress.NewLogger(nil))
	}

	coordinator := syncer.NewCoordinator(api, syncer.Options{
		Concurrency: conf.Concurrency,
		Reporter:    reporters,
		Transfer: transfer.Config{
			PartSize:    int64(conf.PartSizeMB) * bytesPerMB,
			Concurrency: conf.PartConcurrency,
		},
	})
	return coordinator.Run(ctx, spec, localPath)
}

func printConfiguration(out io.Writer, spec pathspec.PathSpec, localPath string, conf *config.Config) {
	prefix := spec.Prefix
	if prefix == "" {
		prefix = "root"
	}

	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  Bucket: %s\n", spec.Container)
	fmt.Fprintf(out, "  Prefix: %s\n", prefix)
	fmt.Fprintf(out, "  Local Path: %s\n", localPath)
	if conf.ApiURL != "" {
		fmt.Fprintf(out, "  Endpoint: %s\n", conf.ApiURL)
	}
	fmt.Fprintf(out, "  Concurrency: %d\n", conf.Concurrency)
}

func init() {
	syncCmd.Flags().IntP("concurrency", "c", 0, "Number of objects downloaded in parallel (default from SYNC_CONCURRENCY)")
	syncCmd.Flags().BoolP("quiet", "q", false, "Do not print progress")
}
