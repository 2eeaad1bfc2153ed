package clips_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"deckhand/internal/clips"
	"deckhand/internal/deck"
	"deckhand/internal/hyperdeck"
)

type scriptedFetcher struct {
	count int
	lines []string
	fail  error
	sent  []string
}

func (f *scriptedFetcher) Send(_ context.Context, cmd hyperdeck.Command) (hyperdeck.Response, error) {
	f.sent = append(f.sent, cmd.Wire())
	if f.fail != nil {
		return hyperdeck.Response{}, f.fail
	}
	switch cmd.Name {
	case "clips count":
		resp := hyperdeck.Response{Code: 214, Text: "clips count", Fields: map[string]string{}}
		resp.Fields["clip count"] = strconv.Itoa(f.count)
		return resp, nil
	case "clips get":
		return hyperdeck.Response{Code: 205, Text: "clips info", Lines: f.lines, Fields: map[string]string{}}, nil
	}
	return hyperdeck.Response{Code: 200, Text: "ok"}, nil
}

func TestRefreshReplacesSlotWholesale(t *testing.T) {
	dir := clips.New()
	dir.Replace(1, []deck.Clip{{ID: 1, Name: "old.mov"}, {ID: 2, Name: "older.mov"}})

	fetcher := &scriptedFetcher{count: 1, lines: []string{"1: new.mov 00:00:00:00 00:00:10:00"}}
	n, err := dir.Refresh(context.Background(), 1, fetcher)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if n != 1 || dir.Count(1) != 1 {
		t.Fatalf("expected one clip, got n=%d count=%d", n, dir.Count(1))
	}
	if _, ok := dir.FindByName(1, "older.mov"); ok {
		t.Fatal("expected stale clip to be gone")
	}
	clip, ok := dir.FindByID(1, 1)
	if !ok || clip.Name != "new.mov" || clip.Duration != "00:00:10:00" {
		t.Fatalf("unexpected clip: %+v", clip)
	}
}

func TestRefreshEmptySlotSkipsListFetch(t *testing.T) {
	dir := clips.New()
	dir.Replace(2, []deck.Clip{{ID: 1, Name: "a.mov"}})

	fetcher := &scriptedFetcher{count: 0}
	if _, err := dir.Refresh(context.Background(), 2, fetcher); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if len(fetcher.sent) != 1 || fetcher.sent[0] != "clips count" {
		t.Fatalf("expected only clips count, sent %v", fetcher.sent)
	}
	if dir.Count(2) != 0 {
		t.Fatalf("expected slot cleared, count %d", dir.Count(2))
	}
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	dir := clips.New()
	dir.Replace(1, []deck.Clip{{ID: 1, Name: "keep.mov"}})
	version := dir.Version()

	_, err := dir.Refresh(context.Background(), 1, &scriptedFetcher{fail: hyperdeck.ErrTimeout})
	if !errors.Is(err, hyperdeck.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if dir.Count(1) != 1 || dir.Version() != version {
		t.Fatal("expected previous list and version to survive a failed refresh")
	}
}

func TestFindByNameFallsBackToCaseInsensitive(t *testing.T) {
	dir := clips.New()
	dir.Replace(1, []deck.Clip{{ID: 1, Name: "Interview.mov"}, {ID: 2, Name: "interview.MOV"}})

	if clip, ok := dir.FindByName(1, "interview.MOV"); !ok || clip.ID != 2 {
		t.Fatalf("expected exact match to win, got %+v", clip)
	}
	if clip, ok := dir.FindByName(1, "INTERVIEW.mov"); !ok || clip.ID != 1 {
		t.Fatalf("expected folded match, got %+v", clip)
	}
	if _, ok := dir.FindByName(2, "Interview.mov"); ok {
		t.Fatal("expected lookups to stay within the slot")
	}
}

func TestChoicesRegenerateAndNotify(t *testing.T) {
	dir := clips.New()
	var gotSlot int
	var got []clips.Choice
	dir.OnChange(func(slotID int, choices []clips.Choice) {
		gotSlot = slotID
		got = choices
	})

	fetcher := &scriptedFetcher{count: 2, lines: []string{
		"1: a.mov 00:00:00:00 00:00:05:00",
		"2: b.mov 00:00:05:00 00:00:05:00",
	}}
	if _, err := dir.Refresh(context.Background(), 1, fetcher); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if gotSlot != 1 || len(got) != 2 || got[1] != (clips.Choice{ID: 2, Label: "b.mov"}) {
		t.Fatalf("unexpected change notification: slot=%d choices=%v", gotSlot, got)
	}
	if len(dir.Choices(1)) != 2 {
		t.Fatal("expected cached choices")
	}
	if ids := dir.Slots(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("unexpected slots: %v", ids)
	}
}
