// Package calendar holds the in-memory event registry, its date-bucketed
// queries and the month grid used by calendar views.
package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/campus-portal/internal/observable"
)

// DefaultUpcomingLimit is used when UpcomingEvents is called with a
// non-positive limit.
const DefaultUpcomingLimit = 5

// Calendar is the authoritative registry of scheduled events.
type Calendar struct {
	mu       sync.Mutex
	events   []Event
	snapshot *observable.Value[[]Event]
	location *time.Location
	now      func() time.Time
	newID    func() string
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithLocation sets the time zone whose calendar days bucket events. The
// default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Calendar) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithClock overrides the time source used by UpcomingEvents.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides how event ids are generated.
func WithIDGenerator(next func() string) Option {
	return func(c *Calendar) {
		if next != nil {
			c.newID = next
		}
	}
}

// New returns an empty Calendar.
func New(opts ...Option) *Calendar {
	c := &Calendar{
		snapshot: observable.New([]Event{}),
		location: time.Local,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location reports the time zone used for day boundaries.
func (c *Calendar) Location() *time.Location {
	return c.location
}

// AddEvent appends a new event with a fresh id. The time ordering of start and
// end is not checked.
func (c *Calendar) AddEvent(input EventInput) Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	event := Event{
		ID:          c.newID(),
		Title:       input.Title,
		Description: input.Description,
		Start:       toMillis(input.Start),
		End:         toMillis(input.End),
		Location:    input.Location,
		Organizer:   input.Organizer,
	}
	c.events = append(c.events, event)
	c.publishLocked()
	return event
}

// UpdateEvent applies patch to the event with the given id, keeping its
// position. An unknown id changes nothing and publishes nothing.
func (c *Calendar) UpdateEvent(id string, patch EventPatch) (Event, bool) {
	updated, ok, _ := c.UpdateEventChecked(id, patch, nil)
	return updated, ok
}

// UpdateEventChecked is UpdateEvent with a check run on the patched event
// under the same lock as the write. A non-nil error from check leaves the
// calendar untouched and is returned as is.
func (c *Calendar) UpdateEventChecked(id string, patch EventPatch, check func(next Event) error) (Event, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(id)
	if idx < 0 {
		return Event{}, false, nil
	}
	updated := patch.apply(c.events[idx])
	if check != nil {
		if err := check(updated); err != nil {
			return Event{}, true, err
		}
	}
	c.events[idx] = updated
	c.publishLocked()
	return updated, true, nil
}

// DeleteEvent removes the event with the given id and reports whether it
// existed.
func (c *Calendar) DeleteEvent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(id)
	if idx < 0 {
		return false
	}
	c.events = append(c.events[:idx:idx], c.events[idx+1:]...)
	c.publishLocked()
	return true
}

// GetByID looks up a single event.
func (c *Calendar) GetByID(id string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(id); idx >= 0 {
		return c.events[idx], true
	}
	return Event{}, false
}

// EventsForDate returns the events starting on the local calendar day that
// contains date, from 00:00:00.000 through 23:59:59.999, ordered by start.
func (c *Calendar) EventsForDate(date time.Time) []Event {
	from, to := DayBounds(date, c.location)

	c.mu.Lock()
	matches := make([]Event, 0)
	for _, event := range c.events {
		if !event.Start.Before(from) && !event.Start.After(to) {
			matches = append(matches, event)
		}
	}
	c.mu.Unlock()

	sortByStart(matches)
	return matches
}

// UpcomingEvents returns at most limit events starting strictly after now,
// ordered by start.
func (c *Calendar) UpcomingEvents(limit int) []Event {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	now := c.now()

	c.mu.Lock()
	matches := make([]Event, 0)
	for _, event := range c.events {
		if event.Start.After(now) {
			matches = append(matches, event)
		}
	}
	c.mu.Unlock()

	sortByStart(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Events returns a copy of every event in insertion order.
func (c *Calendar) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEvents(c.events)
}

// Subscribe observes the full event list. Each snapshot is a private copy.
func (c *Calendar) Subscribe() (<-chan []Event, func()) {
	return c.snapshot.Subscribe()
}

// Snapshot exposes the event list snapshot container.
func (c *Calendar) Snapshot() *observable.Value[[]Event] {
	return c.snapshot
}

// Restore loads persisted events. Events whose id is already present are
// skipped. It returns how many events were added.
func (c *Calendar) Restore(events []Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, event := range events {
		if event.ID == "" || c.indexLocked(event.ID) >= 0 {
			continue
		}
		event.Start = toMillis(event.Start)
		event.End = toMillis(event.End)
		c.events = append(c.events, event)
		added++
	}
	if added > 0 {
		c.publishLocked()
	}
	return added
}

// DayBounds returns the first and last millisecond of the calendar day in loc
// that contains t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start, end
}

func (c *Calendar) indexLocked(id string) int {
	for i, event := range c.events {
		if event.ID == id {
			return i
		}
	}
	return -1
}

func (c *Calendar) publishLocked() {
	c.snapshot.Publish(cloneEvents(c.events))
}

func sortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
