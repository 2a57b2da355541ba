package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/edgegrid/app"
	"github.com/kilianp07/edgegrid/core/model"
)

var (
	callPayload string
	callTimeout time.Duration
)

var callCmd = &cobra.Command{
	Use:     "call <module> <method>",
	Short:   "Invoke a method on a running module",
	Example: `  edgegrid call battery-module start_charging -d '{"power_kw": 20}'`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var payload model.Payload
		if callPayload != "" {
			if err := json.Unmarshal([]byte(callPayload), &payload); err != nil {
				return fmt.Errorf("payload: %w", err)
			}
		}
		out, err := app.Call(ctx, cfg, args[0], args[1], payload, callTimeout)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	callCmd.Flags().StringVarP(&callPayload, "data", "d", "", "JSON payload")
	callCmd.Flags().DurationVarP(&callTimeout, "timeout", "t", 10*time.Second, "response timeout")
	rootCmd.AddCommand(callCmd)
}
