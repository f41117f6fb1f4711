package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gav/internal/loop"
)

var (
	callTool    string
	callFile    string
	callMessage string
	callFailed  bool
	callOutput  string
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(guardCmd)
	for _, c := range []*cobra.Command{verifyCmd, guardCmd} {
		c.Flags().StringVarP(&callTool, "tool", "t", "", "tool name, e.g. edit_file or git_commit")
		c.Flags().StringVarP(&callFile, "file", "f", "", "target file of the tool call")
		_ = c.MarkFlagRequired("tool")
	}
	verifyCmd.Flags().StringVarP(&callMessage, "message", "m", "", "commit or submission message")
	verifyCmd.Flags().BoolVar(&callFailed, "failed", false, "the action itself failed")
	verifyCmd.Flags().StringVar(&callOutput, "output", "", "output produced by the action")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a completed tool call",
	Long: `Run the hooks and static checks for a completed tool call and print
the verdict. Exits non-zero when verification fails.

Examples:
  gav verify --tool edit_file --file internal/cache/cache.go
  gav verify --tool git_commit --message "GAV-12 fix eviction"`,
	RunE: runVerify,
}

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Run pre-edit hooks for a pending tool call",
	Long: `Run PreEdit hooks before a write, edit or delete is performed. Exits
non-zero when a blocking hook rejects the call.

Examples:
  gav guard --tool write_file --file go.sum`,
	RunE: runGuard,
}

func toolCall() loop.ToolCall {
	args := map[string]any{}
	if callFile != "" {
		args["file_path"] = callFile
	}
	if callMessage != "" {
		args["message"] = callMessage
	}
	return loop.ToolCall{ID: uuid.NewString(), Name: callTool, Arguments: args}
}

func runVerify(cmd *cobra.Command, args []string) error {
	reg, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, reg)

	result := loop.ToolResult{Success: !callFailed, Output: callOutput}
	v := reg.Verify().Verify(cmd.Context(), toolCall(), result, debug)
	return printVerdict(cmd, v)
}

func runGuard(cmd *cobra.Command, args []string) error {
	reg, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, reg)

	v := reg.Guard().Check(cmd.Context(), toolCall(), debug)
	return printVerdict(cmd, v)
}

func printVerdict(cmd *cobra.Command, v *loop.Verdict) error {
	switch {
	case v == nil:
		fmt.Fprintln(cmd.OutOrStdout(), "not verified")
		return nil
	case v.Passed:
		fmt.Fprintln(cmd.OutOrStdout(), "passed")
		return nil
	default:
		fmt.Fprintln(cmd.OutOrStdout(), v.Feedback)
		return errFailed
	}
}
