package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// scriptedClient returns the queued results in order.
type scriptedClient struct {
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	raw string
	err error
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, instruction, content string, schema map[string]interface{}) (string, error) {
	if c.calls >= len(c.results) {
		return "", errors.New("scripted client exhausted")
	}
	r := c.results[c.calls]
	c.calls++
	return r.raw, r.err
}

func newTestAdapter(c Client) (*Adapter, *[]time.Duration) {
	a := NewAdapter(c, zap.NewNop())
	var slept []time.Duration
	a.sleep = func(d time.Duration) { slept = append(slept, d) }
	return a, &slept
}

func TestCall_TransientFailuresThenSuccess(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{err: transient("connection reset")},
		{err: transient("rate limit exceeded (429)")},
		{raw: `{"is_satisfied": true, "is_uncertain": false}`},
	}}
	a, slept := newTestAdapter(client)

	got, err := Call[FeedbackVerdict](context.Background(), a, Invocation{Name: "feedback"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !got.Satisfied || got.Uncertain {
		t.Errorf("Call() = %+v, want satisfied and not uncertain", got)
	}
	if got, want := client.calls, 3; got != want {
		t.Errorf("client calls = %d, want %d", got, want)
	}
	if diff := cmp.Diff([]time.Duration{1 * time.Second, 2 * time.Second}, *slept); diff != "" {
		t.Errorf("backoff delays mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_ExhaustedRetriesReturnsError(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{err: transient("timeout")},
		{err: transient("timeout")},
		{err: transient("timeout")},
	}}
	a, slept := newTestAdapter(client)

	_, err := Call[SearchPlan](context.Background(), a, Invocation{Name: "retrieve"})
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("Call() error = %v, want ErrOracleUnavailable", err)
	}
	if got, want := client.calls, 3; got != want {
		t.Errorf("client calls = %d, want %d", got, want)
	}
	// No sleep after the final attempt.
	if diff := cmp.Diff([]time.Duration{1 * time.Second, 2 * time.Second}, *slept); diff != "" {
		t.Errorf("backoff delays mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_NonTransientAbortsImmediately(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{err: errors.New("API request failed with status 400")},
		{raw: `{"search_query": "never reached", "reasoning": ""}`},
	}}
	a, slept := newTestAdapter(client)

	_, err := Call[SearchPlan](context.Background(), a, Invocation{Name: "retrieve"})
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("Call() error = %v, want ErrOracleUnavailable", err)
	}
	if got, want := client.calls, 1; got != want {
		t.Errorf("client calls = %d, want %d", got, want)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no backoff on non-transient failure", *slept)
	}
}

func TestCall_MalformedResponseIsUnavailable(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{raw: `not json at all`},
	}}
	a, _ := newTestAdapter(client)

	_, err := Call[TOCAnalysis](context.Background(), a, Invocation{Name: "toc"})
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("Call() error = %v, want ErrOracleUnavailable", err)
	}
}

func TestCall_DecodesTypedResult(t *testing.T) {
	client := &scriptedClient{results: []scriptedResult{
		{raw: `{"has_toc": true, "relevant_pages": [15,16,17], "most_relevant_section_title": "Display issues", "reasoning": "r"}`},
	}}
	a, _ := newTestAdapter(client)

	got, err := Call[TOCAnalysis](context.Background(), a, Invocation{Name: "toc"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := TOCAnalysis{HasTOC: true, RelevantPages: []int{15, 16, 17}, SectionTitle: "Display issues", Reasoning: "r"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Call() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(transient("x")) {
		t.Error("transient error not recognised")
	}
	if IsTransient(errors.New("x")) {
		t.Error("plain error treated as transient")
	}
}
