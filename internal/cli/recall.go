package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/config"
)

var (
	recallAffect string
	recallLimit  int
)

var recallCmd = &cobra.Command{
	Use:   "recall <subject-id> <query>",
	Short: "Search a subject's memories by semantic and affective similarity",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().StringVar(&recallAffect, "affect", "", "live affect label for emotional re-ranking")
	recallCmd.Flags().IntVar(&recallLimit, "limit", 5, "maximum results")
}

func runRecall(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	memorySvc := newMemoryService(cfg, db)

	var actx *affect.Context
	if recallAffect != "" {
		label := affect.Label(recallAffect)
		if !affect.Known(label) {
			return fmt.Errorf("unknown affect label %q", recallAffect)
		}
		ctx := affect.NewContext(label)
		actx = &ctx
	}

	results, degraded, err := memorySvc.Search(cmd.Context(), args[0], args[1], actx, recallLimit)
	if err != nil {
		return err
	}

	if degraded {
		fmt.Fprintln(os.Stderr, "(semantic-only ranking)")
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.3f] (%s %.2f, decay %.2f) %s\n",
			i+1, r.FinalScore, r.Memory.AffectLabel, r.Memory.Intensity, r.DecayFactor, r.Memory.Content)
	}
	if len(results) == 0 {
		fmt.Println("no memories found")
	}
	return nil
}
