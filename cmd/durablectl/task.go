package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	taskSubmitWasmHash string
	taskSubmitName     string
	taskSubmitData     string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Submit and inspect tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new task",
	RunE:  runTaskSubmit,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskSubmitCmd, taskShowCmd)

	taskSubmitCmd.Flags().StringVar(&taskSubmitWasmHash, "wasm-id", "", "id of a previously uploaded wasm module")
	taskSubmitCmd.Flags().StringVar(&taskSubmitName, "name", "", "task name")
	taskSubmitCmd.Flags().StringVar(&taskSubmitData, "data", "{}", "JSON-encoded task input data")
	taskSubmitCmd.MarkFlagRequired("wasm-id")
	taskSubmitCmd.MarkFlagRequired("name")
}

func runTaskSubmit(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(taskSubmitData)) {
		return fmt.Errorf("--data is not valid JSON")
	}

	var wasmID int64
	if _, err := fmt.Sscanf(taskSubmitWasmHash, "%d", &wasmID); err != nil {
		return fmt.Errorf("--wasm-id must be numeric: %w", err)
	}

	id, err := st.SubmitTask(cmd.Context(), taskSubmitName, wasmID, []byte(taskSubmitData))
	if err != nil {
		return fmt.Errorf("submit task: %w", err)
	}

	logger.Info().Int64("task_id", id).Str("name", taskSubmitName).Msg("task submitted")
	fmt.Printf("task id: %d\n", id)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid task id %q: %w", args[0], err)
	}

	t, err := st.GetTask(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("id:           %d\n", t.ID)
	fmt.Printf("name:         %s\n", t.Name)
	fmt.Printf("state:        %s\n", t.State)
	if t.RunningOn != nil {
		fmt.Printf("running_on:   %d\n", *t.RunningOn)
	}
	fmt.Printf("created_at:   %s\n", t.CreatedAt)
	if t.CompletedAt != nil {
		fmt.Printf("completed_at: %s\n", *t.CompletedAt)
	}
	if t.WakeupAt != nil {
		fmt.Printf("wakeup_at:    %s\n", *t.WakeupAt)
	}
	return nil
}
