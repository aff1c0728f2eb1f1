package cli

import (
	"github.com/spf13/cobra"

	"enteliwatch/internal/app"
)

var trendsRange string

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Run one trend query and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Trends(cmd.Context(), app.TrendsOptions{Range: trendsRange})
	},
}

func init() {
	trendsCmd.Flags().StringVar(&trendsRange, "range", "1h", "Time range (1h, 4h, 12h, 24h, 7d)")
}
