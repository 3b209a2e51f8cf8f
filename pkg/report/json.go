package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONRenderer writes the reports as one indented JSON document.
type JSONRenderer struct {
	Path string
}

func (r *JSONRenderer) Render(reports []FileReport) error {
	f, err := os.Create(r.Path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: encode: %w", err)
	}
	return f.Close()
}
