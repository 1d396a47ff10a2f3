package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send notifications to running or suspended tasks",
}

var notifySendCmd = &cobra.Command{
	Use:   "send <task-id> <event> <json-data>",
	Short: "Enqueue a notification for a task",
	Args:  cobra.ExactArgs(3),
	RunE:  runNotifySend,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifySendCmd)
}

func runNotifySend(cmd *cobra.Command, args []string) error {
	var taskID int64
	if _, err := fmt.Sscanf(args[0], "%d", &taskID); err != nil {
		return fmt.Errorf("invalid task id %q: %w", args[0], err)
	}
	event := args[1]
	data := args[2]
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("<json-data> is not valid JSON")
	}

	if err := st.EnqueueNotification(cmd.Context(), taskID, event, []byte(data)); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	logger.Info().Int64("task_id", taskID).Str("event", event).Msg("notification sent")
	return nil
}
