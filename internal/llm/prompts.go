package llm

import (
	"fmt"
)

// Sentinel is the literal a model replies with when it has no answer.
const Sentinel = "None"

// ExtractionPrompt asks for the serial number on the label.
const ExtractionPrompt = "Extract the serial number from this image. " +
	"It may be labeled as 'SER', 'SERNO', 'SER NO', 'SERIAL', 'S/N', 'ESN', 'Serial No', 'No Serie', etc. " +
	"Ignore values labeled MODEL, TYPE, PNR, CERT, DATE, EXP, or MFR. " +
	"Return only the serial number value, or 'None' if there is no serial number."

const verificationTemplate = `You are given an image of a serial number label.
The OCR system extracted: %s
The GPT model extracted: %s

Determine the correct serial number based on the image and the two candidates. If neither is correct, reply with 'None'. Return only the final serial number or 'None'.`

// VerificationPrompt asks the model to arbitrate between two candidates.
// Missing candidates are shown as the sentinel.
func VerificationPrompt(ocrText, extracted string) string {
	if ocrText == "" {
		ocrText = Sentinel
	}
	if extracted == "" {
		extracted = Sentinel
	}
	return fmt.Sprintf(verificationTemplate, ocrText, extracted)
}
