package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/devflowhq/devflow/internal/coordinator"
)

func init() {
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(resumeCmd)
	RootCmd.AddCommand(listCmd)

	runCmd.Flags().Duration("timeout", 0, "Overall timeout for this run (0 = no timeout)")
	resumeCmd.Flags().Duration("timeout", 0, "Overall timeout for this run (0 = no timeout)")
	listCmd.Flags().Bool("totals", false, "Show indexed event totals for every workflow instead of resumable progress")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a PROJECT.md charter and .devflow.yaml in the project directory",
	RunE:  runInit,
}

var startCmd = &cobra.Command{
	Use:   "start [request text]",
	Short: "Validate a request against the charter and start a new workflow",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStart,
}

var runCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Drive a workflow's pipeline forward to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <workflow-id>",
	Short: "Resume a previously interrupted workflow from its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumable workflows and their progress",
	RunE:  runList,
}

func runInit(cmd *cobra.Command, args []string) error {
	charterPath := ResolvedConfig.CharterPath
	if _, err := os.Stat(charterPath); err == nil {
		pterm.Warning.Printf("%s already exists, leaving it untouched\n", charterPath)
	} else {
		if err := os.WriteFile(charterPath, []byte(scaffoldCharter), 0o644); err != nil {
			return fmt.Errorf("cliapp: failed to write %s: %w", charterPath, err)
		}
		pterm.Success.Printf("Wrote %s\n", charterPath)
	}

	devflowYAML := ".devflow.yaml"
	if GlobalFlags.ProjectDir != "." {
		devflowYAML = GlobalFlags.ProjectDir + "/.devflow.yaml"
	}
	if _, err := os.Stat(devflowYAML); err == nil {
		pterm.Warning.Printf("%s already exists, leaving it untouched\n", devflowYAML)
		return nil
	}
	if err := os.WriteFile(devflowYAML, []byte(scaffoldConfig), 0o644); err != nil {
		return fmt.Errorf("cliapp: failed to write %s: %w", devflowYAML, err)
	}
	pterm.Success.Printf("Wrote %s\n", devflowYAML)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	c, _, err := buildCoordinator(ResolvedConfig)
	if err != nil {
		return err
	}
	defer closeIndex(c)

	request := joinArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), ResolvedConfig.StageTimeout)
	defer cancel()

	res, err := c.StartWorkflow(ctx, request)
	if err != nil {
		return fmt.Errorf("cliapp: start_workflow failed: %w", err)
	}

	if GlobalFlags.JSON {
		return printJSON(res)
	}
	if !res.OK {
		pterm.Error.Printf("Request refused: %s\n", res.Message)
		return nil
	}
	pterm.Success.Printf("Started workflow %s\n", res.WorkflowID)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	return driveWorkflow(cmd, args[0], false)
}

func runResume(cmd *cobra.Command, args []string) error {
	return driveWorkflow(cmd, args[0], true)
}

func driveWorkflow(cmd *cobra.Command, workflowID string, resume bool) error {
	c, _, err := buildCoordinator(ResolvedConfig)
	if err != nil {
		return err
	}
	defer closeIndex(c)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if resume {
		r := c.Resume(ctx, workflowID)
		return reportRunResult(r.OK, r.Error)
	}
	r := c.Run(ctx, workflowID)
	return reportRunResult(r.OK, r.Error)
}

func reportRunResult(ok bool, runErr error) error {
	if runErr != nil {
		pterm.Error.Printf("Workflow halted: %v\n", runErr)
		return runErr
	}
	if ok {
		pterm.Success.Println("Workflow completed")
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	c, _, err := buildCoordinator(ResolvedConfig)
	if err != nil {
		return err
	}
	defer closeIndex(c)

	if totals, _ := cmd.Flags().GetBool("totals"); totals {
		return runListTotals(c)
	}

	resumable, err := c.ListResumable()
	if err != nil {
		return fmt.Errorf("cliapp: list_resumable failed: %w", err)
	}

	if GlobalFlags.JSON {
		return printJSON(resumable)
	}

	if len(resumable) == 0 {
		pterm.Info.Println("No resumable workflows")
		return nil
	}

	// Reserve room for the "Progress" and "Next Agent" columns, and give the
	// rest of the terminal width to the workflow ID column.
	idWidth := terminalWidth() - 28
	if idWidth < 12 {
		idWidth = 12
	}

	tableData := pterm.TableData{{"Workflow", "Progress", "Next Agent"}}
	for _, r := range resumable {
		next := r.Next
		if next == "" {
			next = "-"
		}
		tableData = append(tableData, []string{truncateForWidth(r.WorkflowID, idWidth), fmt.Sprintf("%d%%", r.Progress), next})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// runListTotals renders the event-log index's per-workflow counts — a
// cheap cross-workflow summary that would otherwise require re-scanning
// every JSONL file under LogRoot.
func runListTotals(c *coordinator.Coordinator) error {
	if c.Index == nil {
		return fmt.Errorf("cliapp: event log index is not available")
	}
	totals, err := c.Index.Totals(context.Background())
	if err != nil {
		return fmt.Errorf("cliapp: failed to read index totals: %w", err)
	}

	if GlobalFlags.JSON {
		return printJSON(totals)
	}

	if len(totals) == 0 {
		pterm.Info.Println("No indexed workflows")
		return nil
	}

	idWidth := terminalWidth() - 40
	if idWidth < 12 {
		idWidth = 12
	}

	tableData := pterm.TableData{{"Workflow", "Events", "Decisions", "Alignment Checks", "Perf Metrics"}}
	for _, s := range totals {
		tableData = append(tableData, []string{
			truncateForWidth(s.WorkflowID, idWidth),
			fmt.Sprintf("%d", s.TotalEvents),
			fmt.Sprintf("%d", s.Decisions),
			fmt.Sprintf("%d", s.AlignmentChecks),
			fmt.Sprintf("%d", s.PerformanceMetrics),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// closeIndex best-effort closes the coordinator's event log index; nothing
// downstream depends on the index surviving process exit since it is
// rebuilt from the JSONL logs on next open.
func closeIndex(c *coordinator.Coordinator) {
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cliapp: failed to marshal JSON output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

const scaffoldCharter = `## GOALS

- Describe the project's primary objectives here.

## SCOPE

### In Scope
- ✅ Features this project covers.

### Out of Scope
- ❌ Features explicitly excluded.

## CONSTRAINTS

- Constraints the implementation must respect.
`

const scaffoldConfig = `charter_path: PROJECT.md
artifact_store_root: .devflow/artifacts
log_root: .devflow/artifacts/logs/workflows
stage_timeout: 30m
parallel_cluster_size: 3
agent_runtime_command: devflow-agent
# registry_overrides_path: registry.yaml
`
