package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/pipeline"
	"github.com/dockhand/dockhand/internal/prompt"
	"github.com/dockhand/dockhand/internal/runlog"
	"github.com/dockhand/dockhand/internal/store"
)

var cleanupPlan config.Plan

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove a deployed application from its host",
	Long: `Stops and removes the app's containers and image, deletes the remote
project directory and the Nginx site. Asks for confirmation before touching
the host; declining leaves everything in place.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runCleanup())
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().StringVar(&cleanupPlan.RemoteUser, "remote-user", "", "SSH user on the target host")
	cleanupCmd.Flags().StringVar(&cleanupPlan.RemoteHost, "remote-host", "", "Target host IPv4 address")
	cleanupCmd.Flags().StringVar(&cleanupPlan.SSHKeyPath, "ssh-key", "", "Path to the SSH private key")
	cleanupCmd.Flags().StringVar(&cleanupPlan.AppName, "app", "", "Application name")
	cleanupCmd.Flags().BoolVar(&cleanupYes, "yes", false, "Skip the confirmation prompt")
}

var cleanupYes bool

func runCleanup() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan := cleanupPlan
	if err := prompt.CollectCleanup(&plan); err != nil {
		logger.Error("Parameter collection failed", "error", err)
		return pipeline.CodeGeneric
	}

	if !cleanupYes {
		ok, err := prompt.Confirm(fmt.Sprintf("Remove %s from %s", plan.AppName, plan.RemoteHost))
		if err != nil {
			logger.Error("Confirmation failed", "error", err)
			return pipeline.CodeGeneric
		}
		if !ok {
			logger.Info("Cleanup declined; nothing was touched")
			return 0
		}
	}

	log, err := runlog.Open(viper.GetString(config.KeyLogDir), logger)
	if err != nil {
		logger.Error("Could not open run log", "error", err)
		return pipeline.CodeGeneric
	}
	defer log.Close()
	log.Infof("Run log: %s", log.Path())

	cleanErr := pipeline.Cleanup(ctx, plan, log)

	// Recorded even when ctx was cancelled by an interrupt mid-cleanup.
	recordCtx := context.WithoutCancel(ctx)
	if history, err := store.Open(recordCtx); err == nil {
		defer history.Close()
		record := &api.Deployment{
			ID:         uuid.New().String(),
			AppName:    plan.AppName,
			RemoteHost: plan.RemoteHost,
			Status:     api.StatusCleaned,
			LogPath:    log.Path(),
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
		}
		if cleanErr != nil {
			record.Status = api.StatusFailed
			record.Error = cleanErr.Error()
		}
		if err := history.CreateDeployment(recordCtx, record); err != nil {
			log.Warnf("Could not record cleanup: %v", err)
		}
	}

	if cleanErr != nil {
		log.Errorf("Cleanup failed: %v", cleanErr)
		return pipeline.ExitCode(cleanErr)
	}
	return 0
}
