package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caretrace",
	Short: "Behavioral risk scoring and emotional memory for care coordination",
	Long: "Caretrace turns behavioral events from a care-coordination companion into\n" +
		"trended risk scores, emotion-weighted memories, and resource-engagement tracking.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(followupCmd)
	rootCmd.AddCommand(cleanupCmd)
}
