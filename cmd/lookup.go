package cmd

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/surveylens/internal/survey"
	"github.com/KaramelBytes/surveylens/internal/utils"
	"github.com/spf13/cobra"
)

var (
	lookupJSON bool
	lookupFile string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <code>",
	Short: "Print one respondent's comparison report",
	Long: `Find the respondent whose secret code matches <code> and print how their
answers compare with everyone else's, as Markdown or JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		svc, err := newService(c, lookupFile, nil)
		if err != nil {
			return err
		}
		rep, err := svc.Lookup(cmd.Context(), args[0])
		switch {
		case errors.Is(err, survey.ErrEmptyKey):
			return fmt.Errorf("code is empty")
		case errors.Is(err, survey.ErrNotFound):
			return fmt.Errorf("code not found: %q", args[0])
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		if lookupJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprint(out, rep.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print the report as JSON")
	lookupCmd.Flags().StringVar(&lookupFile, "file", "", "read the survey from a local CSV instead of the configured source")
}
