package model

import (
	"strconv"
	"strings"
	"time"
)

// InputType identifies how the scanned image entered the system.
type InputType string

// InputType values.
const (
	InputCamera InputType = "camera"
	InputUpload InputType = "upload"
)

// TaskSerialNumber is the only task the scanner currently performs.
const TaskSerialNumber = "serial_number"

// CaseRecord is the flat record persisted for one accepted case.
type CaseRecord struct {
	ID          string            `json:"id"`
	CaseID      string            `json:"case_id"`
	CreatedAt   time.Time         `json:"created_at"`
	Task        string            `json:"task"`
	Agent       string            `json:"agent"`
	InputType   InputType         `json:"input_type"`
	Serial      string            `json:"serial_number"`
	Confidence  float64           `json:"confidence"`
	Source      Source            `json:"source"`
	IsKnownGood bool              `json:"is_known_good"`
	Edited      bool              `json:"edited"`
	ImagePath   string            `json:"image_path,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Timeline    map[string]string `json:"timeline"`
}

// Row flattens the record into string columns, timeline fields included.
func (r CaseRecord) Row() map[string]string {
	row := map[string]string{
		"timestamp_iso": r.CreatedAt.Format(time.RFC3339),
		"experiment_id": r.ID,
		"case_id":       r.CaseID,
		"task":          r.Task,
		"agent":         r.Agent,
		"input_type":    string(r.InputType),
		"serial_number": r.Serial,
		"confidence":    strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		"source":        string(r.Source),
		"is_known_good": strconv.FormatBool(r.IsKnownGood),
		"edited":        strconv.FormatBool(r.Edited),
		"image_path":    r.ImagePath,
		"notes":         r.Notes,
	}
	for k, v := range r.Timeline {
		row[k] = v
	}
	return row
}

// RecordFromRow rebuilds a record from flattened columns. Unknown columns
// other than timeline fields are ignored.
func RecordFromRow(row map[string]string) CaseRecord {
	r := CaseRecord{
		ID:        row["experiment_id"],
		CaseID:    row["case_id"],
		Task:      row["task"],
		Agent:     row["agent"],
		InputType: InputType(row["input_type"]),
		Serial:    row["serial_number"],
		Source:    Source(row["source"]),
		ImagePath: row["image_path"],
		Notes:     row["notes"],
		Timeline:  make(map[string]string),
	}
	if t, err := time.Parse(time.RFC3339, row["timestamp_iso"]); err == nil {
		r.CreatedAt = t
	}
	r.Confidence, _ = strconv.ParseFloat(row["confidence"], 64)
	r.IsKnownGood, _ = strconv.ParseBool(row["is_known_good"])
	r.Edited, _ = strconv.ParseBool(row["edited"])
	if r.Source == "" {
		r.Source = SourceNone
	}
	for k, v := range row {
		if strings.HasPrefix(k, "ts_") && v != "" {
			r.Timeline[k] = v
		}
	}
	return r
}
