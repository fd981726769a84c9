package types

type AIOperation string

const (
	AIOperationEnhance   AIOperation = "enhance"
	AIOperationSummarize AIOperation = "summarize"
)

type TextResult struct {
	ProcessedText string   `json:"processed_text"`
	KeyTerms      []string `json:"key_terms,omitempty"`
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ImageResult struct {
	Text          string  `json:"ocr_raw_text"`
	OriginalText  string  `json:"original_text,omitempty"`
	ProcessedText string  `json:"processed_text,omitempty"`
	Confidence    float64 `json:"ocr_confidence"`
}

// RecognizedText prefers the raw OCR text and falls back to the original text field.
func (r ImageResult) RecognizedText() string {
	if r.Text != "" {
		return r.Text
	}
	return r.OriginalText
}
