// Package cmd implements the mudra command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Pose-triggered sound and image feedback from a webcam",
	Long: `mudra watches the webcam, classifies the pose in every frame and plays
the sound and image bound to a gesture once it is held with confidence.
Running mudra without a subcommand is the same as "mudra run".`,
	SilenceUsage: true,
	RunE:         runMudra,
}

// envFile is the .env file loaded before MUDRA_* variables are read.
var envFile string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with MUDRA_* settings")
	addSettingsFlags(rootCmd)
}
