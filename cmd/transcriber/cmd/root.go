package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"audio-transcriber/cmd/transcriber/cmd/serve"
	"audio-transcriber/cmd/transcriber/cmd/transcribe"
	"audio-transcriber/cmd/transcriber/cmd/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Upload an audio or video file and get its transcript",
	Long: `Transcriber validates audio and video uploads (MP3, MP4, WAV, M4A, WEBM up to 25MB)
and sends them to a speech-to-text backend.
- serve runs the upload page and HTTP API
- transcribe handles a single local file from the terminal`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(transcribe.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $TRANSCRIBER_CONFIG)")
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "verbose output")
}
