package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/edgegrid/app"
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Run the controller and every asset in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := app.NewStack(cfg)
		if err != nil {
			return err
		}
		return st.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(stackCmd)
}
