package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// Source reads log pages and usage. *remote.Client satisfies it.
type Source interface {
	Logs(ctx context.Context, category device.Category, q remote.LogQuery) (remote.LogPage, error)
	HourlyUsage(ctx context.Context) (remote.HourlyUsage, error)
}

// Logger is the logging interface used by the Browser.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Browser pages through the log of each category independently and
// fetches the hourly usage series on demand.
//
// A failed fetch leaves the category's last page (or the last usage series)
// in place and returns it together with the error. When requests for one
// category overlap, the page of the last one issued becomes current even if
// an older one finishes later.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Requests for different categories never wait on each other.
type Browser struct {
	src    Source
	logger Logger

	mu      sync.Mutex
	pages   map[device.Category]Page
	filters map[device.Category]Filter
	usage   []UsageBucket

	// seq numbers page requests per category. Only the result of the
	// newest request is kept as the current page.
	seq map[device.Category]uint64
}

// NewBrowser creates a Browser. Nothing is fetched until asked.
func NewBrowser(src Source) *Browser {
	return &Browser{
		src:     src,
		logger:  noopLogger{},
		pages:   make(map[device.Category]Page),
		filters: make(map[device.Category]Filter),
		seq:     make(map[device.Category]uint64),
	}
}

// SetLogger sets the logger.
func (b *Browser) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// FetchPage fetches page index (0-based) of category using the
// category's current filter.
//
// Returns:
//   - Page: The new page, or the previous one on failure
//   - error: ErrInvalidPage, or ErrFetchFailed wrapping the cause
func (b *Browser) FetchPage(ctx context.Context, category device.Category, index int) (Page, error) {
	b.mu.Lock()
	filter := b.filters[category]
	b.mu.Unlock()
	return b.fetch(ctx, category, index, filter)
}

// FetchFiltered sets the category's filter and fetches page index.
func (b *Browser) FetchFiltered(ctx context.Context, category device.Category, index int, filter Filter) (Page, error) {
	b.mu.Lock()
	b.filters[category] = filter
	b.mu.Unlock()
	return b.fetch(ctx, category, index, filter)
}

// Next fetches the page after the current one.
func (b *Browser) Next(ctx context.Context, category device.Category) (Page, error) {
	cur, _ := b.Current(category)
	if !cur.HasNext() {
		return cur, ErrNoNext
	}
	return b.FetchPage(ctx, category, cur.Index+1)
}

// Previous fetches the page before the current one.
func (b *Browser) Previous(ctx context.Context, category device.Category) (Page, error) {
	cur, _ := b.Current(category)
	if !cur.HasPrevious() {
		return cur, ErrNoPrevious
	}
	return b.FetchPage(ctx, category, cur.Index-1)
}

// Current returns the last page fetched for category.
func (b *Browser) Current(category device.Category) (Page, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pages[category]
	if !ok {
		return Page{Category: category, Size: PageSize, TotalPages: 1}, false
	}
	return p, true
}

func (b *Browser) fetch(ctx context.Context, category device.Category, index int, filter Filter) (Page, error) {
	prev, _ := b.Current(category)
	if index < 0 {
		return prev, fmt.Errorf("%w: %d", ErrInvalidPage, index)
	}

	b.mu.Lock()
	b.seq[category]++
	seq := b.seq[category]
	b.mu.Unlock()

	raw, err := b.src.Logs(ctx, category, remote.LogQuery{
		Page:    index + 1,
		Limit:   PageSize,
		User:    filter.User,
		Action:  filter.Action,
		Source:  filter.Source,
		LightID: filter.LightID,
		From:    filter.From,
		To:      filter.To,
	})
	if err != nil {
		b.logger.Warn("log page fetch failed", "category", category, "page", index, "error", err)
		return prev, fmt.Errorf("%w: %s page %d: %w", ErrFetchFailed, category, index, err)
	}

	page, err := convertPage(category, index, raw)
	if err != nil {
		b.logger.Warn("log page rejected", "category", category, "page", index, "error", err)
		return prev, fmt.Errorf("%w: %s page %d: %w", ErrFetchFailed, category, index, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq[category] != seq {
		// A newer request owns the current page.
		return page, nil
	}
	b.pages[category] = page
	return page, nil
}

func convertPage(category device.Category, index int, raw remote.LogPage) (Page, error) {
	page := Page{
		Category:   category,
		Index:      index,
		Size:       PageSize,
		Total:      raw.Total,
		TotalPages: TotalPages(raw.Total, PageSize),
		Entries:    make([]Entry, 0, len(raw.Logs)),
	}
	for _, row := range raw.Logs {
		ts, err := device.ParseTimestamp(row.Timestamp)
		if err != nil {
			return Page{}, err
		}
		e := Entry{
			ID:        row.ID,
			User:      row.User,
			Action:    row.Action,
			Timestamp: ts,
		}
		if category == device.CategoryLight {
			e.Light = LightLabel(row.LightID, row.Light)
		} else {
			e.Source = row.Source
		}
		page.Entries = append(page.Entries, e)
	}
	return page, nil
}

// HourlyUsage fetches the per-light ON minutes for the last UsageHours
// hours, oldest first. It is never called eagerly; the usage view asks for
// it when shown.
//
// The series always has UsageHours buckets: a longer reply keeps its newest
// buckets and a shorter one is padded at the front with zero buckets.
//
// Returns:
//   - []UsageBucket: The series, or the last good one on failure
//   - error: ErrFetchFailed wrapping the cause
func (b *Browser) HourlyUsage(ctx context.Context) ([]UsageBucket, error) {
	raw, err := b.src.HourlyUsage(ctx)
	if err != nil {
		b.logger.Warn("hourly usage fetch failed", "error", err)
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.usage, fmt.Errorf("%w: hourly usage: %w", ErrFetchFailed, err)
	}

	series := usageSeries(raw.Data)

	b.mu.Lock()
	b.usage = series
	b.mu.Unlock()
	return series, nil
}

// usageSeries fits data to UsageHours buckets. Padding buckets are labelled
// an hour apart, counting back from the first label when it reads as
// "15:04"; otherwise they have no label.
func usageSeries(data []remote.UsageBucket) []UsageBucket {
	if len(data) > UsageHours {
		data = data[len(data)-UsageHours:]
	}
	series := make([]UsageBucket, UsageHours)
	pad := UsageHours - len(data)
	for i, d := range data {
		series[pad+i] = UsageBucket{Hour: d.Hour, Light1: d.Light1, Light2: d.Light2, Light3: d.Light3}
	}
	if pad == 0 || len(data) == 0 {
		return series
	}
	first, err := time.Parse(hourLayout, data[0].Hour)
	if err != nil {
		return series
	}
	for i := range pad {
		series[i].Hour = first.Add(-time.Duration(pad-i) * time.Hour).Format(hourLayout)
	}
	return series
}
