// clickarchive exportiert Klick-Ereignisse eines Tages nach S3 und rotiert alte Archive.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"multidrive/config"
	"multidrive/services"
	"multidrive/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		day      string
		noRotate bool
		keep     int
	)
	cmd := &cobra.Command{
		Use:          "clickarchive",
		Short:        "Export one day of click events to S3 and rotate old archives",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := parseDay(day, time.Now())
			if err != nil {
				return err
			}

			logging, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("can't initialize zap logger: %w", err)
			}
			defer logging.Sync()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.ArchiveEnabled() {
				return fmt.Errorf("ARCHIVE_S3_URL and ARCHIVE_S3_BUCKET must be set")
			}
			if cmd.Flags().Changed("keep") {
				cfg.ArchiveKeep = keep
			}

			db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			s3Client, err := storage.NewS3Client(cfg)
			if err != nil {
				return fmt.Errorf("create s3 client: %w", err)
			}

			archiver := &services.ClickArchiver{
				Source: services.NewClickLedger(db, logging.Named("clicks")),
				Store:  storage.NewS3Store(s3Client, cfg.ArchiveS3Bucket),
				Keep:   cfg.ArchiveKeep,
				Logger: logging.Named("archive"),
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			key, n, err := archiver.ExportDay(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d events -> s3://%s/%s\n", n, cfg.ArchiveS3Bucket, key)

			if noRotate {
				return nil
			}
			deleted, err := archiver.Rotate(ctx)
			if err != nil {
				return fmt.Errorf("rotate archives: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d old archives deleted\n", deleted)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Day to export (YYYY-MM-DD, UTC); default is yesterday")
	cmd.Flags().BoolVar(&noRotate, "no-rotate", false, "Skip deleting old archives")
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of archives to keep (overrides ARCHIVE_KEEP)")
	return cmd
}

// parseDay liest --day; leer bedeutet gestern (UTC).
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now.UTC().AddDate(0, 0, -1), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --day %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}
