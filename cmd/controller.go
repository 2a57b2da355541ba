package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/edgegrid/app"
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run the balancing controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctrl, err := app.NewController(cfg)
		if err != nil {
			return err
		}
		return ctrl.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(controllerCmd)
}
