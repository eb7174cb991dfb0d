package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caretrace/caretrace/internal/config"
	"github.com/caretrace/caretrace/internal/engagement"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Run the follow-up and auto-abandon pass once",
	RunE:  runFollowup,
}

func runFollowup(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc := engagement.NewService(db, cfg.FollowUp)
	plan, err := svc.RunFollowUps(time.Now())
	if err != nil {
		return err
	}

	for _, intent := range plan.Intents {
		fmt.Printf("nudge %s (%s, stage %d, day %d): %s\n",
			intent.EngagementID, intent.State, intent.Stage, intent.ElapsedDays, intent.Message)
	}
	for _, id := range plan.Abandon {
		fmt.Printf("abandoned %s\n", id)
	}
	fmt.Printf("%d nudges, %d abandoned\n", len(plan.Intents), len(plan.Abandon))
	return nil
}
