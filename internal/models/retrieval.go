package models

type Reason string

const (
	ReasonRateLimited         Reason = "rate_limited"
	ReasonTranscriptsDisabled Reason = "transcripts_disabled"
	ReasonNoTranscript        Reason = "no_transcript"
	ReasonUnknown             Reason = "unknown"
)

func (r Reason) Describe() string {
	switch r {
	case ReasonRateLimited:
		return "upstream blocked the request (too many requests or cloud provider IP)"
	case ReasonTranscriptsDisabled:
		return "transcripts are disabled for this item"
	case ReasonNoTranscript:
		return "no transcript available in the requested languages"
	default:
		return "unknown retrieval error"
	}
}

// Retryable reports whether another attempt in the same cycle can help.
func (r Reason) Retryable() bool {
	return r == ReasonRateLimited || r == ReasonUnknown
}

// RetrievalResult holds either text or the reason it is absent. Use
// Retrieved and Absent to build one.
type RetrievalResult struct {
	Text      string
	Truncated bool
	Reason    Reason
	Detail    string
}

func Retrieved(text string, truncated bool) RetrievalResult {
	return RetrievalResult{Text: text, Truncated: truncated}
}

func Absent(reason Reason, detail string) RetrievalResult {
	return RetrievalResult{Reason: reason, Detail: detail}
}

func (r RetrievalResult) OK() bool {
	return r.Reason == ""
}
