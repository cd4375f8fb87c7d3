package models

import "testing"

func TestRetrievalResultConstructors(t *testing.T) {
	ok := Retrieved("text", true)
	if !ok.OK() || ok.Text != "text" || !ok.Truncated {
		t.Errorf("unexpected retrieved result %+v", ok)
	}

	absent := Absent(ReasonNoTranscript, "none in es")
	if absent.OK() || absent.Text != "" || absent.Truncated {
		t.Errorf("absent result must not carry text: %+v", absent)
	}
}

func TestReasonRetryable(t *testing.T) {
	tests := map[Reason]bool{
		ReasonRateLimited:         true,
		ReasonUnknown:             true,
		ReasonTranscriptsDisabled: false,
		ReasonNoTranscript:        false,
	}
	for reason, want := range tests {
		if got := reason.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", reason, got, want)
		}
		if reason.Describe() == "" {
			t.Errorf("%s has no description", reason)
		}
	}
}
