package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"interview-scheduler/internal/scheduling"
)

func buildGenerateCommand(configFile *string) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots for an interviewer from the stored availability rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			st, closeStore, err := openStore(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer closeStore()

			opts := coreOptions(cfg, log)
			ivs := scheduling.NewInterviewers(st, scheduling.NewGenerator(st, opts...), cfg.Scheduling.HorizonWeeks, opts...)

			iv, err := ivs.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			slots, err := ivs.Regenerate(ctx, iv.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d slots for %s\n", len(slots), iv.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "interviewer email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
