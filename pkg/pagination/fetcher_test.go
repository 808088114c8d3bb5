package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func records(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(v)
	}
	return out
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	pages := map[int][]json.RawMessage{
		0: records(`"a"`, `"b"`),
		2: records(),
		5: records(`"c"`),
	}
	var calls []int
	fetcher := NewFetcher(PageFetcherFunc(func(ctx context.Context, page int) ([]json.RawMessage, error) {
		calls = append(calls, page)
		return pages[page], nil
	}), DefaultConfig(), zerolog.Nop())

	got, err := fetcher.FetchAll(context.Background(), []int{0, 2, 5})
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	want := []string{`"a"`, `"b"`, `"c"`}
	if len(got) != len(want) {
		t.Fatalf("len(records) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("records[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if len(calls) != 3 || calls[0] != 0 || calls[1] != 2 || calls[2] != 5 {
		t.Errorf("pages requested = %v, want [0 2 5]", calls)
	}
}

func TestFetchAll_AbortsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls []int
	fetcher := NewFetcher(PageFetcherFunc(func(ctx context.Context, page int) ([]json.RawMessage, error) {
		calls = append(calls, page)
		if page == 1 {
			return nil, boom
		}
		return records(`1`), nil
	}), DefaultConfig(), zerolog.Nop())

	got, err := fetcher.FetchAll(context.Background(), []int{0, 1, 2})
	if got != nil {
		t.Errorf("records = %v, want nil on failure", got)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}

	var pageErr *PageError
	if !errors.As(err, &pageErr) {
		t.Fatalf("error = %T, want *PageError", err)
	}
	if pageErr.Page != 1 || pageErr.Fetched != 1 {
		t.Errorf("PageError = %+v, want Page=1 Fetched=1", pageErr)
	}
	if len(calls) != 2 {
		t.Errorf("pages requested = %v, partition 2 must not be fetched", calls)
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	fetcher := NewFetcher(PageFetcherFunc(func(ctx context.Context, page int) ([]json.RawMessage, error) {
		called = true
		return nil, nil
	}), DefaultConfig(), zerolog.Nop())

	_, err := fetcher.FetchAll(ctx, []int{0})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("no partition should be fetched after cancellation")
	}
}

func TestFetchAll_EmptyResultIsNonNil(t *testing.T) {
	fetcher := NewFetcher(PageFetcherFunc(func(ctx context.Context, page int) ([]json.RawMessage, error) {
		return nil, nil
	}), Config{}, zerolog.Nop())

	got, err := fetcher.FetchAll(context.Background(), []int{0})
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("records = %#v, want empty non-nil slice", got)
	}
}
