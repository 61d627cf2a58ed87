// Package report renders plant status and journal exports.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/store"
)

// CommandJSON is the JSON representation of a journaled relay command.
type CommandJSON struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	Action     string `json:"action"`
	PipelineID int    `json:"pipeline_id,omitempty"`
	Origin     string `json:"origin"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	IssuedAt   string `json:"issued_at"`
	ExecutedAt string `json:"executed_at,omitempty"`
}

func commandJSON(c store.CommandEntry) CommandJSON {
	out := CommandJSON{
		ID:         c.ID,
		Device:     c.Device,
		Action:     c.Action,
		PipelineID: c.PipelineID,
		Origin:     c.Origin,
		Status:     c.Status,
		Reason:     c.Reason,
		IssuedAt:   c.IssuedAt.Format(time.RFC3339),
	}
	if c.ExecutedAt != nil {
		out.ExecutedAt = c.ExecutedAt.Format(time.RFC3339)
	}
	return out
}

// ExportCommandsCSV writes the relay command journal as CSV to w, newest
// first. origin filters by command origin when non-empty.
// Headers: id,device,action,pipeline_id,origin,status,reason,issued_at,executed_at
func ExportCommandsCSV(w io.Writer, s *store.Store, origin string) error {
	commands, err := s.ListCommands(origin, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "device", "action", "pipeline_id", "origin", "status", "reason", "issued_at", "executed_at"}); err != nil {
		return err
	}
	for _, c := range commands {
		j := commandJSON(c)
		record := []string{
			j.ID, j.Device, j.Action, strconv.Itoa(j.PipelineID), j.Origin, j.Status, j.Reason, j.IssuedAt, j.ExecutedAt,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCommandsJSON writes the relay command journal as a JSON array.
func ExportCommandsJSON(w io.Writer, s *store.Store, origin string) error {
	commands, err := s.ListCommands(origin, 0)
	if err != nil {
		return err
	}
	records := make([]CommandJSON, len(commands))
	for i, c := range commands {
		records[i] = commandJSON(c)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
