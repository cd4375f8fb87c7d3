package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ObiAU/feeddigest/internal/models"
)

type fakeSource struct {
	calls     int
	languages []string
	results   []fakeResult
}

type fakeResult struct {
	fragments []string
	err       error
}

func (f *fakeSource) Fetch(_ context.Context, _ models.Item, languages []string) ([]string, error) {
	f.languages = languages
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	return r.fragments, r.err
}

func newTestRetriever(src TranscriptSource, attempts int) (*Retriever, *[]time.Duration) {
	r := New(map[models.SourceKind]TranscriptSource{models.KindYouTube: src}, Options{
		SettleDelay: 5 * time.Second,
		Attempts:    attempts,
		Backoff:     2 * time.Second,
	})
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

var testItem = models.Item{ID: "vid1", Source: "Channel"}

func TestFetchJoinsFragments(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{"hola", "mundo"}}}}
	r, slept := newTestRetriever(src, 3)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, []string{"es", "en"}, 100)
	if !res.OK() {
		t.Fatalf("expected text, got reason %q", res.Reason)
	}
	if res.Text != "hola mundo" || res.Truncated {
		t.Errorf("unexpected result %+v", res)
	}
	if len(*slept) != 1 || (*slept)[0] != 5*time.Second {
		t.Errorf("expected a single settle delay, got %v", *slept)
	}
	if strings.Join(src.languages, ",") != "es,en" {
		t.Errorf("languages not passed through: %v", src.languages)
	}
}

func TestFetchJoinsWithSingleSpacesOnly(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{"uno", "dos", "tres"}}}}
	r, _ := newTestRetriever(src, 1)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 7)
	if res.Text != "uno dos" || !res.Truncated {
		t.Errorf("expected the first 7 chars of the joined text, got %+v", res)
	}
}

func TestFetchTruncatesToMaxChars(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{strings.Repeat("x", 150)}}}}
	r, _ := newTestRetriever(src, 1)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if len(res.Text) != 100 || !res.Truncated {
		t.Errorf("expected 100 chars truncated, got %d truncated=%v", len(res.Text), res.Truncated)
	}

	exact := &fakeSource{results: []fakeResult{{fragments: []string{strings.Repeat("x", 100)}}}}
	r, _ = newTestRetriever(exact, 1)
	res = r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if len(res.Text) != 100 || res.Truncated {
		t.Errorf("text at the limit should not be truncated, got %d truncated=%v", len(res.Text), res.Truncated)
	}
}

func TestFetchTruncatesRunes(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{strings.Repeat("ñ", 10)}}}}
	r, _ := newTestRetriever(src, 1)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 4)
	if res.Text != "ññññ" || !res.Truncated {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFetchEmptyTextIsNoTranscript(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{" ", ""}}}}
	r, _ := newTestRetriever(src, 1)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if res.Reason != models.ReasonNoTranscript {
		t.Errorf("expected no_transcript, got %+v", res)
	}
}

func TestFetchRetriesRateLimited(t *testing.T) {
	src := &fakeSource{results: []fakeResult{
		{err: &FetchError{Reason: models.ReasonRateLimited}},
		{err: &FetchError{Reason: models.ReasonRateLimited}},
		{fragments: []string{"ok"}},
	}}
	r, slept := newTestRetriever(src, 3)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if !res.OK() || res.Text != "ok" {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if src.calls != 3 {
		t.Errorf("expected 3 calls, got %d", src.calls)
	}
	want := []time.Duration{5 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected sleeps %v, got %v", want, *slept)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, (*slept)[i], want[i])
		}
	}
}

func TestFetchGivesUpAfterAttempts(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{err: &FetchError{Reason: models.ReasonRateLimited}}}}
	r, _ := newTestRetriever(src, 2)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if res.Reason != models.ReasonRateLimited {
		t.Errorf("expected rate_limited, got %+v", res)
	}
	if res.Detail != models.ReasonRateLimited.Describe() {
		t.Errorf("unexpected detail %q", res.Detail)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 calls, got %d", src.calls)
	}
}

func TestFetchDoesNotRetryFinalReasons(t *testing.T) {
	for _, reason := range []models.Reason{models.ReasonTranscriptsDisabled, models.ReasonNoTranscript} {
		src := &fakeSource{results: []fakeResult{{err: &FetchError{Reason: reason}}}}
		r, _ := newTestRetriever(src, 3)

		res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
		if res.Reason != reason {
			t.Errorf("expected %s, got %+v", reason, res)
		}
		if src.calls != 1 {
			t.Errorf("%s: expected a single call, got %d", reason, src.calls)
		}
	}
}

func TestFetchUnknownErrorKeepsShortMessage(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{err: errors.New(strings.Repeat("e", 300))}}}
	r, _ := newTestRetriever(src, 1)

	res := r.Fetch(context.Background(), models.KindYouTube, testItem, nil, 100)
	if res.Reason != models.ReasonUnknown {
		t.Fatalf("expected unknown, got %+v", res)
	}
	want := models.ReasonUnknown.Describe() + ": " + strings.Repeat("e", 100)
	if res.Detail != want {
		t.Errorf("detail = %q, want %q", res.Detail, want)
	}
}

func TestFetchUnknownKind(t *testing.T) {
	r, _ := newTestRetriever(&fakeSource{}, 1)

	res := r.Fetch(context.Background(), models.KindArticle, testItem, nil, 100)
	if res.OK() || res.Reason != models.ReasonUnknown {
		t.Errorf("expected unknown for missing source kind, got %+v", res)
	}
}

func TestFetchCancelledDuringSettle(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{fragments: []string{"x"}}}}
	r := New(map[models.SourceKind]TranscriptSource{models.KindYouTube: src}, Options{SettleDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Fetch(ctx, models.KindYouTube, testItem, nil, 100)
	if res.OK() {
		t.Errorf("expected absence after cancellation, got %+v", res)
	}
	if src.calls != 0 {
		t.Errorf("source should not be called after cancellation")
	}
}
