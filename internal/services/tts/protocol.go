package tts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one JSON line emitted by the synthesis helper.
//
// Types:
//
//	started       total_units, session_id
//	unit_complete completed_units, active_workers, workers
//	phase         phase, percent, message (assembly reporting)
//	completed     output_dir
//	error         message
type Event struct {
	Type           string        `json:"type"`
	TotalUnits     int           `json:"total_units,omitempty"`
	CompletedUnits int           `json:"completed_units,omitempty"`
	ActiveWorkers  int           `json:"active_workers,omitempty"`
	Workers        []WorkerEvent `json:"workers,omitempty"`
	SessionID      string        `json:"session_id,omitempty"`
	Phase          string        `json:"phase,omitempty"`
	Percent        float64       `json:"percent,omitempty"`
	Message        string        `json:"message,omitempty"`
	OutputDir      string        `json:"output_dir,omitempty"`
}

// WorkerEvent is a parallel worker's position inside an event.
type WorkerEvent struct {
	Worker int    `json:"worker"`
	Unit   int    `json:"unit"`
	Phase  string `json:"phase,omitempty"`
}

const (
	eventStarted      = "started"
	eventUnitComplete = "unit_complete"
	eventPhase        = "phase"
	eventCompleted    = "completed"
	eventError        = "error"
)

// decodeEvent parses one stdout line. Non-JSON lines are passed through as
// plain log output (nil event, no error).
func decodeEvent(line string) (*Event, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return nil, nil
	}
	var event Event
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		return nil, fmt.Errorf("decode synthesis event: %w", err)
	}
	if event.Type == "" {
		return nil, nil
	}
	return &event, nil
}
