// Package report renders a finished machine output document as indented
// JSON and as a Markdown narrative.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Dee66/repo-scanner-sub001/core/document"
)

// RenderMachine returns root with sorted keys, indented with two spaces and
// terminated by a newline. Numbers keep their literal spelling, so parsing
// the output and rendering it again yields identical bytes.
func RenderMachine(root document.Value) ([]byte, error) {
	encoded, err := document.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode machine output: %w", err)
	}
	buffer := &bytes.Buffer{}
	if err := json.Indent(buffer, encoded, "", "  "); err != nil {
		return nil, fmt.Errorf("indent machine output: %w", err)
	}
	buffer.WriteByte('\n')
	return buffer.Bytes(), nil
}
