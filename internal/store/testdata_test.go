package store

import (
	"time"

	"github.com/sells-group/serialscan/internal/model"
)

func sampleRecord(id, serial string, created time.Time) *model.CaseRecord {
	return &model.CaseRecord{
		ID:          id,
		CaseID:      "case-" + id,
		CreatedAt:   created,
		Task:        model.TaskSerialNumber,
		Agent:       "standard",
		InputType:   model.InputCamera,
		Serial:      serial,
		Confidence:  0.5,
		Source:      model.SourceGPTVerify,
		IsKnownGood: false,
		Timeline: map[string]string{
			"ts_scan_pressed": "2026-05-04T14:00:00.000+02:00",
			"ts_result_saved": "2026-05-04T14:00:02.500+02:00",
		},
	}
}
