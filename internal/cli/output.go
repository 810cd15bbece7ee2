package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Response is the JSON envelope for --format json.
type Response struct {
	Status  string `json:"status"` // always "ok"; failures exit non-zero
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// output writes a result as one text line or as a JSON envelope.
func output(cmd *cobra.Command, opts *RootOptions, message string, data any) error {
	return write(cmd.OutOrStdout(), opts.Format, message, data)
}

func write(w io.Writer, format, message string, data any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: "ok", Message: message, Data: data})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
