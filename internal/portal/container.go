// Package portal owns the process-wide stores shared by every service.
package portal

import (
	"sync"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
)

// Container builds the Directory and Calendar on first use. Concurrent first
// callers all receive the same instance.
type Container struct {
	directoryOptions []directory.Option
	calendarOptions  []calendar.Option

	directoryOnce sync.Once
	directory     *directory.Directory

	calendarOnce sync.Once
	calendar     *calendar.Calendar
}

// Option configures a Container.
type Option func(*Container)

// WithDirectoryOptions forwards opts to directory.New.
func WithDirectoryOptions(opts ...directory.Option) Option {
	return func(c *Container) {
		c.directoryOptions = append(c.directoryOptions, opts...)
	}
}

// WithCalendarOptions forwards opts to calendar.New.
func WithCalendarOptions(opts ...calendar.Option) Option {
	return func(c *Container) {
		c.calendarOptions = append(c.calendarOptions, opts...)
	}
}

func NewContainer(opts ...Option) *Container {
	c := &Container{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Directory returns the shared account directory.
func (c *Container) Directory() *directory.Directory {
	c.directoryOnce.Do(func() {
		c.directory = directory.New(c.directoryOptions...)
	})
	return c.directory
}

// Calendar returns the shared event calendar.
func (c *Container) Calendar() *calendar.Calendar {
	c.calendarOnce.Do(func() {
		c.calendar = calendar.New(c.calendarOptions...)
	})
	return c.calendar
}
