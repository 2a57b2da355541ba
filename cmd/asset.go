package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/edgegrid/app"
)

var assetCmd = &cobra.Command{
	Use:       fmt.Sprintf("asset <%s>", strings.Join(app.Kinds(), "|")),
	Short:     "Run one simulated asset module",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: app.Kinds(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.NewAsset(args[0], cfg)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(assetCmd)
}
