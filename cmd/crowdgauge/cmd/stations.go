package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// stationsCmd represents the stations command.
var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List registered stations",
	Long: `List the station registry: the built-in station list, or the file given by
--stations-file / stations_file.

Examples:
  crowdgauge stations
  crowdgauge stations --stations-file stations.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry(GetConfig())
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		list := registry.Stations()

		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		case "yaml":
			enc := yaml.NewEncoder(out)
			defer func() { _ = enc.Close() }()
			return enc.Encode(map[string]any{"stations": list})
		case "text":
		default:
			return fmt.Errorf("invalid format %q (must be text, json or yaml)", format)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tBOUNDS")
		for _, s := range list {
			bounds := "-"
			if s.Bounded() {
				bounds = fmt.Sprintf("%.2f..%.2f", s.LowerBound, s.UpperBound)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, bounds)
		}
		_, _ = fmt.Fprintf(tw, "\n%d stations\n", len(list))
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stationsCmd)
	stationsCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")
}
