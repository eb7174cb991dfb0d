package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caretrace/caretrace/internal/config"
)

var scoreLive bool

var scoreCmd = &cobra.Command{
	Use:   "score <subject-id>",
	Short: "Run a scoring pass for a subject and print the snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreLive, "live", false, "compute without persisting the snapshot")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	riskSvc, err := newRiskService(cfg, db)
	if err != nil {
		return err
	}

	snapshot, err := riskSvc.Analyze(args[0], !scoreLive, time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}
