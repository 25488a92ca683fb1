package cmd

import (
	"context"
	"errors"
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

var deployPlan config.Plan

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy an application to a remote host",
	Long: `Collects the deployment parameters (anything not given as a flag is
asked for interactively), clones the repository, provisions the host and
brings the app up behind Nginx. The process exit status identifies the
stage that failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDeploy())
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVar(&deployPlan.RepoURL, "repo", "", "Git repository URL (http/https)")
	deployCmd.Flags().StringVar(&deployPlan.GitUsername, "git-user", "", "Git username for the token")
	deployCmd.Flags().StringVar(&deployPlan.AccessToken, "token", "", "Personal access token (prefer the prompt)")
	deployCmd.Flags().StringVar(&deployPlan.Branch, "branch", "", "Branch to deploy (default main)")
	deployCmd.Flags().StringVar(&deployPlan.RemoteUser, "remote-user", "", "SSH user on the target host")
	deployCmd.Flags().StringVar(&deployPlan.RemoteHost, "remote-host", "", "Target host IPv4 address")
	deployCmd.Flags().StringVar(&deployPlan.SSHKeyPath, "ssh-key", "", "Path to the SSH private key")
	deployCmd.Flags().IntVar(&deployPlan.AppPort, "port", 0, "Port the application listens on")
	deployCmd.Flags().StringVar(&deployPlan.AppName, "app", "", "Application name")
}

func runDeploy() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plan := deployPlan

	// Credentials may come from the environment (DOCKHAND_GIT_USERNAME,
	// DOCKHAND_GIT_TOKEN) for non-interactive use; flags win over both.
	if plan.GitUsername == "" {
		plan.GitUsername = viper.GetString(config.KeyGitUsername)
	}
	if plan.AccessToken == "" {
		plan.AccessToken = viper.GetString(config.KeyGitToken)
	}

	if err := prompt.Collect(&plan); err != nil {
		logger.Error("Parameter collection failed", "error", err)
		if errors.Is(err, prompt.ErrCredential) {
			return pipeline.CodeCredentials
		}
		return pipeline.CodeGeneric
	}

	log, err := runlog.Open(viper.GetString(config.KeyLogDir), logger)
	if err != nil {
		logger.Error("Could not open run log", "error", err)
		return pipeline.CodeGeneric
	}
	defer log.Close()
	log.Infof("Run log: %s", log.Path())

	// History recording never fails a deployment.
	runID := uuid.New().String()
	history, err := store.Open(ctx)
	if err != nil {
		log.Warnf("Run history unavailable: %v", err)
		history = nil
	} else {
		defer history.Close()
		record := &api.Deployment{
			ID:         runID,
			AppName:    plan.AppName,
			RepoURL:    plan.RepoURL,
			Branch:     plan.Branch,
			RemoteHost: plan.RemoteHost,
			AppPort:    plan.AppPort,
			Status:     api.StatusRunning,
			LogPath:    log.Path(),
			StartedAt:  time.Now().UTC(),
		}
		if err := history.CreateDeployment(ctx, record); err != nil {
			log.Warnf("Could not record run %s: %v", runID, err)
		}
	}

	commit, runErr := pipeline.Run(ctx, plan, log)

	if history != nil {
		finalizeRun(ctx, history, runID, commit, runErr, log)
	}

	if runErr != nil {
		log.Errorf("Deployment failed: %v", runErr)
		return pipeline.ExitCode(runErr)
	}

	log.Successf("%s is live at http://%s/", plan.AppName, plan.RemoteHost)
	return 0
}

// finalizeRun writes the run outcome to the history store. The write is
// detached from cancellation: an interrupted run must still be finalized,
// not left "running" forever.
func finalizeRun(ctx context.Context, history store.Store, id, commit string, runErr error, log *runlog.Log) {
	ctx = context.WithoutCancel(ctx)

	status := api.StatusSucceeded
	errText := ""
	if runErr != nil {
		status = api.StatusFailed
		errText = runErr.Error()
	}
	if err := history.FinishDeployment(ctx, id, status, commit, errText, time.Now().UTC()); err != nil {
		log.Warnf("Could not finalize run %s: %v", id, err)
	}
}
