package portal

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
)

func TestContainerBuildsOneInstanceUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := NewContainer(WithCalendarOptions(calendar.WithLocation(time.UTC)))

	const callers = 32
	dirs := make([]*directory.Directory, callers)
	cals := make([]*calendar.Calendar, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			dirs[i] = c.Directory()
			cals[i] = c.Calendar()
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < callers; i++ {
		if dirs[i] != dirs[0] || cals[i] != cals[0] {
			t.Fatalf("caller %d observed a different instance", i)
		}
	}
	if cals[0].Location() != time.UTC {
		t.Fatalf("expected calendar options to be applied")
	}
}

func TestSeed(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewContainer(WithCalendarOptions(calendar.WithLocation(time.UTC)))
	now := time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC)

	result := Seed(c.Directory(), c.Calendar(), now, logger)
	if result.Accounts != 3 || result.Events != 6 {
		t.Fatalf("unexpected seed result: %+v", result)
	}

	admin, ok := c.Directory().Login("admin@tbsuniversity.edu", "admin123")
	if !ok || admin.Role != directory.RoleAdmin || !admin.EmailVerified {
		t.Fatalf("expected seeded admin to sign in, got %+v", admin)
	}

	today := c.Calendar().EventsForDate(now)
	if len(today) != 3 {
		t.Fatalf("expected three sessions today, got %d", len(today))
	}
	if got := today[0].Start; got != time.Date(2024, time.March, 4, 8, 30, 0, 0, time.UTC) {
		t.Fatalf("expected the first session at 08:30, got %v", got)
	}
	if tomorrow := c.Calendar().EventsForDate(now.AddDate(0, 0, 1)); len(tomorrow) != 2 || tomorrow[0].Title != "Database Systems" {
		t.Fatalf("unexpected events tomorrow: %+v", tomorrow)
	}
	if week := c.Calendar().EventsForDate(now.AddDate(0, 0, 7)); len(week) != 1 || week[0].Organizer != "JCI TBS" {
		t.Fatalf("unexpected events next week: %+v", week)
	}

	again := Seed(c.Directory(), c.Calendar(), now, logger)
	if again.Accounts != 0 || again.Events != 0 {
		t.Fatalf("expected a second seed to add nothing, got %+v", again)
	}
}
