package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"baken/process/scanwatch"
)

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Decode tickets from images and digit dumps dropped into a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scan"); err != nil {
			return err
		}
		dir := cfg.Scan.WatchDir
		if len(args) == 1 {
			dir = args[0]
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		detector, err := newDetector()
		if err != nil {
			return err
		}
		session, err := newSession()
		if err != nil {
			return err
		}

		source := "watch:" + dir
		w, err := scanwatch.New(scanwatch.Options{
			Dir:          dir,
			Workers:      cfg.Scan.Workers,
			FramesPerSec: cfg.Scan.FramesPerSec,
			Once:         watchOnce,
			Detector:     detector,
			Session:      session,
			Log:          zap.L(),
		}, func(ctx context.Context, c scanwatch.Completion) error {
			_, err := env.Rec.Record(ctx, c.Code, source, scanSources(c.Halves, c.Files...))
			return err
		})
		if err != nil {
			return err
		}
		zap.L().Info("watching drop folder", zap.String("dir", dir), zap.Int("workers", cfg.Scan.Workers))
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "process the files already present and exit")
	rootCmd.AddCommand(watchCmd)
}
