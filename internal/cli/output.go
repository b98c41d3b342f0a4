package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case StatsResult:
		_, _ = fmt.Fprintf(o.w, "Connections: %d\n", v.Connections)
		_, _ = fmt.Fprintf(o.w, "Sessions:    %d\n", v.Sessions)
		_, _ = fmt.Fprintf(o.w, "Waiting:     %d\n", v.Waiting)
		_, _ = fmt.Fprintf(o.w, "Pairs:       %d\n", v.Paired)
	default:
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// StatsResult response type
type StatsResult struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
	Waiting     int `json:"waiting"`
	Paired      int `json:"paired"`
}
