package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/sms"
)

// smsCmd represents the sms command.
var smsCmd = &cobra.Command{
	Use:   "sms <message>",
	Short: "Parse a text-message reading",
	Long: `Parse a plain-text reading the way the webhook does and print the reply
the contributor would get. Nothing is stored.

Examples:
  crowdgauge sms "NY1000 2.5"
  crowdgauge sms "ny 1000 2.5 70"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(GetConfig())
		if err != nil {
			return err
		}
		body := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		res, err := sms.Parse(body, registry)
		if err != nil {
			_, _ = fmt.Fprintf(out, "Rejected: %v\n", err)
			_, _ = fmt.Fprintf(out, "Reply:    %s\n", sms.Reply(err))
			return nil
		}

		_, _ = fmt.Fprintf(out, "Station:  %s\n", res.StationID)
		if res.WaterHeight != nil {
			_, _ = fmt.Fprintf(out, "Height:   %.2f ft\n", *res.WaterHeight)
		}
		if res.Temperature != nil {
			_, _ = fmt.Fprintf(out, "Temp:     %.1f F\n", *res.Temperature)
		}
		_, _ = fmt.Fprintf(out, "Reply:    %s\n", messaging.SMSAcceptedText(res.StationID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(smsCmd)
}
