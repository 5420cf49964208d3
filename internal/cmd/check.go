package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/feedback"
	"github.com/ayusman/mudra/internal/pose"
	"github.com/ayusman/mudra/internal/trigger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which model classes have a sound and an image",
	Long: `Read the model metadata and the assets directory and print, for every
class label, whether a sound and an image are available. Classes without
assets still trigger; their feedback is simply skipped.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	meta, err := pose.LoadMetadata(filepath.Join(cfg.ModelDir, pose.MetadataFile))
	if err != nil {
		return err
	}

	assets := feedback.NewAssets(cfg.AssetsDir)
	if err := assets.Discover(); err != nil {
		return fmt.Errorf("scan assets: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model: %s (%d classes)\n", meta.ModelName, len(meta.Labels))
	fmt.Fprintf(out, "Assets: %s\n", assets.Dir())
	fmt.Fprintf(out, "Pose service: %s\n\n", poseScriptStatus(cfg.PoseScript))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOUND\tIMAGE")
	for _, label := range meta.Labels {
		_, sound := assets.Sound(label)
		_, image := assets.Image(label)
		fmt.Fprintf(w, "%s\t%s\t%s\n", label, mark(sound), mark(image))
	}
	for _, name := range []string{trigger.ImageCompleted, trigger.ImageNeutral} {
		_, image := assets.Image(name)
		fmt.Fprintf(w, "%s\t-\t%s\n", name, mark(image))
	}
	return w.Flush()
}

// poseScriptStatus reports where the pose service script was found. Without
// it every session ends with a model loading failure.
func poseScriptStatus(path string) string {
	if path == "" {
		path = pose.FindPoseScript()
	}
	if path == "" {
		return "not found (install scripts/pose_service.py or pass --pose-script)"
	}
	if _, err := os.Stat(path); err != nil {
		return path + " (missing)"
	}
	return path
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
