package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kosarica/durable/internal/wasmhost"
)

var wasmName string

var wasmCmd = &cobra.Command{
	Use:   "wasm",
	Short: "Manage uploaded wasm modules",
}

var wasmUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a compiled wasm module, content-addressed by sha256",
	Args:  cobra.ExactArgs(1),
	RunE:  runWasmUpload,
}

func init() {
	rootCmd.AddCommand(wasmCmd)
	wasmCmd.AddCommand(wasmUploadCmd)

	wasmUploadCmd.Flags().StringVar(&wasmName, "name", "", "human-readable name recorded alongside the module")
}

func runWasmUpload(cmd *cobra.Command, args []string) error {
	binary, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read wasm file: %w", err)
	}

	hash := wasmhost.ContentHash(binary)
	id, err := st.RegisterWasm(cmd.Context(), hash, binary, wasmName)
	if err != nil {
		return fmt.Errorf("register wasm: %w", err)
	}

	logger.Info().Int64("wasm_id", id).Str("path", args[0]).Msg("wasm uploaded")
	fmt.Printf("wasm id: %d\n", id)
	return nil
}
