package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRescoreCmd recomputes stored scores, e.g. after an answer key was fixed.
func NewRescoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore <attempt-id>...",
		Short: "Recompute the score of one or more attempts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRescore(cmd.Context(), *configPath, args)
		},
	}
}

func runRescore(ctx context.Context, configPath string, attemptIDs []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "" {
		return fmt.Errorf("database driver not configured")
	}
	b, err := newBackend(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer b.Close()

	for _, id := range attemptIDs {
		summary, err := b.attempts.RescoreAttempt(ctx, id)
		if err != nil {
			return fmt.Errorf("rescore %s: %w", id, err)
		}
		log.Info().Str("attemptId", id).Int("score", summary.Score).Int("maxScore", summary.MaxScore).Msg("attempt rescored")
	}
	return nil
}
