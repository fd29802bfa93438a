package model

// Source identifies which arbitration stage produced a ScanResult.
type Source string

// Source values.
const (
	SourceOCR        Source = "ocr"
	SourceGPTExtract Source = "gpt_extract"
	SourceGPTVerify  Source = "gpt_verify"
	SourceNone       Source = "none"
)

// IsValid reports whether s is one of the known sources.
func (s Source) IsValid() bool {
	switch s {
	case SourceOCR, SourceGPTExtract, SourceGPTVerify, SourceNone:
		return true
	default:
		return false
	}
}

// ScanResult is the single output of one scan attempt.
type ScanResult struct {
	Serial      *string `json:"serial_number"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
	IsKnownGood bool    `json:"is_known_good"`
}

// NewScanResult builds a result carrying serial. An empty serial yields a
// result without one.
func NewScanResult(serial string, confidence float64, source Source, knownGood bool) ScanResult {
	r := ScanResult{
		Confidence:  confidence,
		Source:      source,
		IsKnownGood: knownGood,
	}
	if serial != "" {
		s := serial
		r.Serial = &s
	}
	return r
}

// NoResult is the "could not determine a serial number" outcome.
func NoResult(confidence float64) ScanResult {
	return ScanResult{Confidence: confidence, Source: SourceNone}
}

// HasSerial reports whether the result carries a non-empty serial number.
func (r ScanResult) HasSerial() bool {
	return r.Serial != nil && *r.Serial != ""
}

// SerialValue returns the serial number or "" when absent.
func (r ScanResult) SerialValue() string {
	if r.Serial == nil {
		return ""
	}
	return *r.Serial
}

// CandidateStatus tags the outcome of an OCR call.
type CandidateStatus int

const (
	// CandidateOK means the OCR service answered. The text may still be empty.
	CandidateOK CandidateStatus = iota
	// CandidateUnreachable means the OCR service could not be reached or
	// returned a non-success response.
	CandidateUnreachable
)

func (s CandidateStatus) String() string {
	switch s {
	case CandidateOK:
		return "ok"
	case CandidateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Candidate is the OCR stage's answer.
type Candidate struct {
	Status     CandidateStatus
	Text       string
	Confidence float64
}

// OCRCandidate returns a successful OCR candidate.
func OCRCandidate(text string, confidence float64) Candidate {
	return Candidate{Status: CandidateOK, Text: text, Confidence: confidence}
}

// Unreachable returns the candidate signalling an unavailable OCR service.
func Unreachable() Candidate {
	return Candidate{Status: CandidateUnreachable}
}

// Reachable reports whether the OCR service answered.
func (c Candidate) Reachable() bool {
	return c.Status == CandidateOK
}

// HasText reports whether the OCR service produced a non-empty candidate.
func (c Candidate) HasText() bool {
	return c.Status == CandidateOK && c.Text != ""
}

// AnswerStatus tags the outcome of a vision LLM call.
type AnswerStatus int

const (
	// AnswerOK carries a value.
	AnswerOK AnswerStatus = iota
	// AnswerNone means the model replied with the "no answer" sentinel.
	AnswerNone
	// AnswerFailed means no usable response was received.
	AnswerFailed
)

func (s AnswerStatus) String() string {
	switch s {
	case AnswerOK:
		return "ok"
	case AnswerNone:
		return "none"
	case AnswerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Answer is the outcome of an extraction or verification call.
type Answer struct {
	Status AnswerStatus
	Text   string
}

// AnswerValue returns an answer carrying text, or a None answer when text is empty.
func AnswerValue(text string) Answer {
	if text == "" {
		return Answer{Status: AnswerNone}
	}
	return Answer{Status: AnswerOK, Text: text}
}

// NoAnswer returns the sentinel answer.
func NoAnswer() Answer {
	return Answer{Status: AnswerNone}
}

// FailedAnswer returns the answer for a failed call.
func FailedAnswer() Answer {
	return Answer{Status: AnswerFailed}
}

// Received reports whether the model responded at all, sentinel included.
func (a Answer) Received() bool {
	return a.Status == AnswerOK || a.Status == AnswerNone
}

// Value returns the answer text, or "" for None and Failed answers.
func (a Answer) Value() string {
	if a.Status != AnswerOK {
		return ""
	}
	return a.Text
}
