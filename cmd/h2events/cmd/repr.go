package cmd

import (
	"github.com/h2events/go-sdk/pkg/scenario"
	"github.com/spf13/cobra"
)

func (a *app) newReprCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repr <scenario.yaml>",
		Short: "Print the batches a scenario produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			batches, err := scenario.NewProducer(s, scenario.WithNestingPolicy(a.cfg.Nesting)).Batches()
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), a.cfg.OutputFormat)
			for _, b := range batches {
				if err := p.HandleBatch(cmd.Context(), b); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
