package calendar

import "time"

// Event is a scheduled calendar item.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Organizer   string
}

// EventInput carries the fields accepted by AddEvent. Location and Organizer
// may be left empty.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	Organizer   string
}

// EventPatch lists the fields UpdateEvent may replace. Nil fields keep their
// stored value.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Location    *string
	Organizer   *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Start == nil && p.End == nil && p.Location == nil && p.Organizer == nil
}

func (p EventPatch) apply(event Event) Event {
	if p.Title != nil {
		event.Title = *p.Title
	}
	if p.Description != nil {
		event.Description = *p.Description
	}
	if p.Start != nil {
		event.Start = toMillis(*p.Start)
	}
	if p.End != nil {
		event.End = toMillis(*p.End)
	}
	if p.Location != nil {
		event.Location = *p.Location
	}
	if p.Organizer != nil {
		event.Organizer = *p.Organizer
	}
	return event
}

// toMillis drops sub-millisecond precision and the monotonic reading so stored
// instants compare the same way epoch-millisecond timestamps do.
func toMillis(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}
