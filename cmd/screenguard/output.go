package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func formatRequests(requests []domain.ActionRequest) string {
	if len(requests) == 0 {
		return "-"
	}
	parts := make([]string, len(requests))
	for i, r := range requests {
		parts[i] = fmt.Sprintf("%s=%s", r.Action, onOff(r.Enabled))
	}
	return strings.Join(parts, " ")
}

func printTransitions(out io.Writer, transitions []domain.Transition) {
	if len(transitions) == 0 {
		fmt.Fprintln(out, "No transitions recorded.")
		return
	}
	for _, t := range transitions {
		degraded := ""
		if t.Degraded {
			degraded = " [degraded]"
		}
		fmt.Fprintf(out, "%s  %-16s %-10s %-13s %s%s\n",
			t.At.Format("2006-01-02 15:04:05"),
			t.Event, t.Phase, t.Capture, formatRequests(t.Requests), degraded)
	}
}

type statusOutput struct {
	Running  bool                   `json:"running"`
	Snapshot *domain.StatusSnapshot `json:"snapshot"`
}

func writeStatusJSON(out io.Writer, snapshot *domain.StatusSnapshot, running bool) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(statusOutput{Running: running, Snapshot: snapshot})
}
