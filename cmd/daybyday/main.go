// Command daybyday turns a "one photo per day" journal into a video.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	rootCmd = &cobra.Command{
		Use:   "daybyday",
		Short: "Render a one-photo-per-day timeline into a video",
		Long: `daybyday composites one photo per day into a slideshow video, with
optional crossfades, date labels and face-aware cropping.

Examples:
  # Build a timeline from a folder of dated photos
  daybyday timeline --dir ./photos --out timeline.yaml

  # Render it to a 9:16 video with crossfades
  daybyday render --timeline timeline.yaml --aspect 9:16 --transition crossfade --out journal.mp4

  # Run the HTTP API or the queue worker
  daybyday serve --config daybyday.yaml
  daybyday worker --config daybyday.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env необязателен.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("reading .env: %w", err)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text (overrides config)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "[-]", err)
		os.Exit(1)
	}
}
