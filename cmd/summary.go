package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/surveylens/internal/dataset"
	"github.com/KaramelBytes/surveylens/internal/utils"
	"github.com/spf13/cobra"
)

var (
	summaryFile string
	summaryJSON bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print global statistics and a profile of every column",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		svc, err := newService(c, summaryFile, nil)
		if err != nil {
			return err
		}
		sum, err := svc.Summary(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if summaryJSON {
			b, err := utils.PrettyJSON(sum)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintln(out, "[GLOBAL STATISTICS]")
		fmt.Fprintf(out, "Snapshot: %s (loaded %s)\n", sum.SnapshotID, sum.LoadedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Participants: %d\n", sum.Overview.Participants)
		fmt.Fprintf(out, "Groups: %d", sum.Overview.Groups)
		if len(sum.Overview.GroupLabels) > 0 {
			fmt.Fprintf(out, " (%s)", strings.Join(sum.Overview.GroupLabels, ", "))
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Questions: %d\n\n", sum.Overview.Questions)
		fmt.Fprint(out, dataset.ProfileMarkdown(sum.Columns))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryFile, "file", "", "read the survey from a local CSV instead of the configured source")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print the summary as JSON")
}
