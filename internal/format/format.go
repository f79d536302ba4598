// Package format renders command output.
package format

import (
	"bufio"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// WriteJSON writes formatted JSON to w, optionally wrapped in a slack code block.
func WriteJSON(w io.Writer, v any, slackMode bool) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if slackMode {
		fmt.Fprintln(w, "```")
	}
	fmt.Fprintln(w, string(output))
	if slackMode {
		fmt.Fprintln(w, "```")
	}
	return nil
}

// WriteLines writes one value per line, the same layout as the identifier
// file.
func WriteLines(w io.Writer, lines []string, slackMode bool) error {
	bw := bufio.NewWriter(w)
	if slackMode {
		bw.WriteString("```\n")
	}
	for _, l := range lines {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	if slackMode {
		bw.WriteString("```\n")
	}
	return bw.Flush()
}
