package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanResult(t *testing.T) {
	r := NewScanResult("AB1234", 0.97, SourceOCR, true)
	require.NotNil(t, r.Serial)
	assert.Equal(t, "AB1234", *r.Serial)
	assert.True(t, r.HasSerial())
	assert.Equal(t, "AB1234", r.SerialValue())
	assert.InDelta(t, 0.97, r.Confidence, 1e-9)
	assert.Equal(t, SourceOCR, r.Source)
	assert.True(t, r.IsKnownGood)
}

func TestNewScanResult_EmptySerial(t *testing.T) {
	r := NewScanResult("", 0.5, SourceGPTVerify, false)
	assert.Nil(t, r.Serial)
	assert.False(t, r.HasSerial())
	assert.Empty(t, r.SerialValue())
}

func TestNoResult(t *testing.T) {
	r := NoResult(0.2)
	assert.Nil(t, r.Serial)
	assert.Equal(t, SourceNone, r.Source)
	assert.False(t, r.IsKnownGood)
	assert.InDelta(t, 0.2, r.Confidence, 1e-9)
}

func TestSource_IsValid(t *testing.T) {
	for _, s := range []Source{SourceOCR, SourceGPTExtract, SourceGPTVerify, SourceNone} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, Source("manual").IsValid())
}

func TestCandidate(t *testing.T) {
	c := OCRCandidate("X9", 0)
	assert.True(t, c.Reachable())
	assert.True(t, c.HasText())

	empty := OCRCandidate("", 0.1)
	assert.True(t, empty.Reachable())
	assert.False(t, empty.HasText())

	down := Unreachable()
	assert.False(t, down.Reachable())
	assert.False(t, down.HasText())
	assert.Equal(t, "unreachable", down.Status.String())
}

func TestAnswer(t *testing.T) {
	ok := AnswerValue("D00494")
	assert.True(t, ok.Received())
	assert.Equal(t, "D00494", ok.Value())

	none := NoAnswer()
	assert.True(t, none.Received())
	assert.Empty(t, none.Value())

	assert.Equal(t, AnswerNone, AnswerValue("").Status)

	failed := FailedAnswer()
	assert.False(t, failed.Received())
	assert.Empty(t, failed.Value())
	assert.Equal(t, "failed", failed.Status.String())
}

func TestCaseRecord_Row(t *testing.T) {
	rec := CaseRecord{
		ID:          "rec-1",
		CaseID:      "case-1",
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Task:        TaskSerialNumber,
		Agent:       "standard",
		InputType:   InputUpload,
		Serial:      "S04878",
		Confidence:  0.4,
		Source:      SourceOCR,
		IsKnownGood: true,
		Timeline:    map[string]string{"ts_ocr_result": "2026-03-01T11:00:00.000+01:00"},
	}

	row := rec.Row()
	assert.Equal(t, "2026-03-01T10:00:00Z", row["timestamp_iso"])
	assert.Equal(t, "S04878", row["serial_number"])
	assert.Equal(t, "0.4", row["confidence"])
	assert.Equal(t, "ocr", row["source"])
	assert.Equal(t, "true", row["is_known_good"])
	assert.Equal(t, "false", row["edited"])
	assert.Equal(t, "upload", row["input_type"])
	assert.Equal(t, "2026-03-01T11:00:00.000+01:00", row["ts_ocr_result"])
}
