package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/service/fetch"
)

// fakeFetch serves canned bodies by URL; unknown URLs fail like an exhausted fetch.
type fakeFetch struct {
	pages map[string]string
	calls []string
	stats fetch.Stats
}

func (f *fakeFetch) Fetch(ctx context.Context, url string, retries int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		f.stats.Failure++
		return nil, fmt.Errorf("%w: %s", fetch.ErrRetriesExhausted, url)
	}
	f.stats.Success++
	return []byte(body), nil
}

func (f *fakeFetch) Stats() fetch.Stats { return f.stats }

type memDedup struct {
	seen   map[string]bool
	marked []model.Item
	err    error
}

func newMemDedup(seen ...string) *memDedup {
	d := &memDedup{seen: map[string]bool{}}
	for _, k := range seen {
		d.seen[k] = true
	}
	return d
}

func dedupKey(id model.ItemID, price int) string { return fmt.Sprintf("%s|%d", id, price) }

func (d *memDedup) Exists(_ context.Context, id model.ItemID, price int) (bool, error) {
	return d.seen[dedupKey(id, price)], nil
}

func (d *memDedup) Mark(_ context.Context, items []model.Item) error {
	if d.err != nil {
		return d.err
	}
	for _, it := range items {
		d.seen[dedupKey(it.ID, it.Price())] = true
		d.marked = append(d.marked, it)
	}
	return nil
}

type recNotifier struct {
	notified  []model.Item
	announced []string
	err       error
}

func (n *recNotifier) Notify(_ context.Context, items []model.Item) error {
	n.notified = append(n.notified, items...)
	return n.err
}

func (n *recNotifier) Announce(_ context.Context, msg string) error {
	n.announced = append(n.announced, msg)
	return n.err
}

type recSink struct {
	batches [][]model.Item
	err     error
}

func (s *recSink) Append(_ context.Context, items []model.Item) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, items)
	return nil
}

func (s *recSink) total() int {
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type sleepLog struct {
	delays []time.Duration
}

func (s *sleepLog) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

var errSink = errors.New("disk full")

type rec struct {
	id    int
	price int
	title string
}

// listingPage renders a catalog page the way the marketplace embeds its state.
func listingPage(records ...rec) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = fmt.Sprintf(`{"id":%d,"title":%q,"description":"","urlPath":"/item/%d","priceDetailed":{"value":%d}}`,
			r.id, r.title, r.id, r.price)
	}
	state := `{"state":{"data":{"catalog":{"items":[` + strings.Join(parts, ",") + `]}}}}`
	return `<html><script type="mime/invalid">` + html.EscapeString(state) + `</script></html>`
}

func detailPage(total, today string) string {
	return `<div><span data-marker="item-view/total-views">` + total +
		`</span><span data-marker="item-view/today-views">` + today + `</span></div>`
}
