package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gav/internal/hooks"
)

var (
	hookFile    string
	hookMessage string
)

func init() {
	rootCmd.AddCommand(hooksCmd)
	hooksCmd.AddCommand(hooksListCmd)
	hooksCmd.AddCommand(hooksRunCmd)
	hooksRunCmd.Flags().StringVarP(&hookFile, "file", "f", "", "file path passed to the hooks")
	hooksRunCmd.Flags().StringVarP(&hookMessage, "message", "m", "", "message passed to the hooks")
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Inspect and run configured hooks",
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured hooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(cmd, reg)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tEVENT\tMODE\tTIMEOUT\tENABLED")
		for _, h := range reg.Hooks().Hooks() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%t\n", h.Name, h.Type, h.FailureMode, h.TimeoutMs, h.Enabled)
		}
		return w.Flush()
	},
}

var hooksRunCmd = &cobra.Command{
	Use:   "run <event>",
	Short: "Run the hooks for an event",
	Long: `Run every enabled hook for an event (PreEdit, PostEdit, PreCommit or
PreSubmit) and print the results. Exits non-zero when a blocking hook fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := hooks.ParseHookType(args[0])
		if err != nil {
			return err
		}
		reg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeRuntime(cmd, reg)

		results, err := reg.Hooks().Run(cmd.Context(), event, hooks.Payload{
			FilePath: hookFile,
			Message:  hookMessage,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range results {
			status := "ok"
			switch {
			case r.Blocked:
				status = "BLOCKED"
			case !r.Success:
				status = "failed"
			}
			fmt.Fprintf(out, "%-8s %s (%dms)\n", status, r.Name, r.DurationMs)
			if !r.Success {
				fmt.Fprintf(out, "         %s\n", reg.Scrubber().Scrub(r.Error).Scrubbed)
			}
		}
		if len(hooks.Blocking(results)) > 0 {
			return errFailed
		}
		return nil
	},
}
