package transcribe

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audio-transcriber/internal/app/api/provider"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/logging"
	"audio-transcriber/internal/app/progress"
	"audio-transcriber/internal/app/workflow"
	"audio-transcriber/internal/config"
)

var ErrTranscriptionFailed = errors.New("transcription failed")

var (
	providerName string
	noProgress   bool
)

// Cmd represents the transcribe command
var Cmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Validate a local audio or video file and print its transcript",
	Long: `Validate a local audio or video file and print its transcript.
The media type is derived from the file extension and checked against the same
allow-list and 25MB ceiling as the upload page.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	Cmd.Flags().StringVarP(&providerName, "provider", "p", "", "backend: openai, whisper_server or simulated (overrides TRANSCRIBER_PROVIDER)")
	Cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress spinner")
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if providerName != "" {
		cfg.Provider.Name = providerName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := zap.NewNop()
	if verbose {
		logger = logging.MustNewLogger(true)
		defer func() { _ = logger.Sync() }()
	}

	transcriber, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return err
	}

	candidate, err := intake.CandidateFromFile(args[0])
	if err != nil {
		return err
	}

	ctrl := workflow.NewController(transcriber,
		workflow.WithLogger(logger),
		workflow.WithTimeout(cfg.Provider.RequestTimeout),
	)
	defer ctrl.Close()

	stderr := cmd.ErrOrStderr()
	if snap, err := ctrl.Select(candidate); err != nil {
		fmt.Fprintln(stderr, snap.Error.Message)
		return err
	}
	if _, err := ctrl.Submit(); err != nil {
		return err
	}

	pm := progress.NewManager(progress.Config{
		Enabled: progress.ShouldShow(noProgress),
		Writer:  stderr,
	})
	spinner := pm.Start("Transcribing " + candidate.Name)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Wait(ctx); err != nil {
		spinner.Done(false)
		pm.Wait()
		return err
	}

	final := ctrl.Snapshot()
	spinner.Done(final.State == workflow.StateSucceeded)
	pm.Wait()

	if final.State != workflow.StateSucceeded {
		fmt.Fprintln(stderr, final.Error.Message)
		return ErrTranscriptionFailed
	}

	fmt.Fprintln(cmd.OutOrStdout(), final.Result)
	return nil
}
