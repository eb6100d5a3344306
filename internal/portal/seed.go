package portal

import (
	"log/slog"
	"time"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/directory"
)

// SeedResult counts what Seed inserted.
type SeedResult struct {
	Accounts int
	Events   int
}

// DemoAccounts returns the demo roster with plain-text secrets.
func DemoAccounts() []directory.Account {
	return []directory.Account{
		{
			ID:               "admin",
			DisplayName:      "Administrator",
			Email:            "admin@tbsuniversity.edu",
			CredentialSecret: "admin123",
			EmailVerified:    true,
			Role:             directory.RoleAdmin,
			Locale:           directory.DefaultLocale,
		},
		{
			ID:               "student1",
			DisplayName:      "Yosser",
			Email:            "yosser@tbsuniversity.edu",
			CredentialSecret: "password123",
			EmailVerified:    true,
			Role:             directory.RoleStudent,
			Locale:           directory.DefaultLocale,
		},
		{
			ID:               "prof1",
			DisplayName:      "Elynn Lee",
			Email:            "elynn@tbsuniversity.edu",
			CredentialSecret: "professor123",
			EmailVerified:    true,
			Role:             directory.RoleProfessor,
			Locale:           directory.DefaultLocale,
		},
	}
}

// DemoEvents returns the sample agenda anchored on the day of now in loc.
func DemoEvents(now time.Time, loc *time.Location) []calendar.EventInput {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	at := func(days, hour, minute int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, loc)
	}
	lecture := func(startHour, startMinute, endHour, endMinute int) calendar.EventInput {
		return calendar.EventInput{
			Title:       "Advanced Programming session",
			Description: "Weekly lecture and lab",
			Start:       at(0, startHour, startMinute),
			End:         at(0, endHour, endMinute),
			Location:    "Room A101",
			Organizer:   "Prof. Elynn Lee",
		}
	}

	return []calendar.EventInput{
		lecture(8, 30, 10, 0),
		lecture(11, 30, 13, 0),
		lecture(13, 0, 14, 30),
		{
			Title:       "Database Systems",
			Description: "Normalization and indexing",
			Start:       at(1, 9, 0),
			End:         at(1, 11, 0),
			Location:    "Room B202",
			Organizer:   "Prof. Oscar Dum",
		},
		{
			Title:       "Hack 'n' Slash Workshop",
			Description: "Hands-on security workshop",
			Start:       at(1, 13, 0),
			End:         at(1, 16, 0),
			Location:    "Computer Lab C",
			Organizer:   "MERIT Club",
		},
		{
			Title:       "Shark Tank Competition",
			Description: "Pitch your startup idea",
			Start:       at(7, 14, 0),
			End:         at(7, 18, 0),
			Location:    "Main Auditorium",
			Organizer:   "JCI TBS",
		},
	}
}

// Seed provisions the demo roster and, when the calendar is empty, the demo
// agenda. Accounts whose id or email already exist are skipped.
func Seed(dir *directory.Directory, cal *calendar.Calendar, now time.Time, logger *slog.Logger) SeedResult {
	if logger == nil {
		logger = slog.Default()
	}

	var result SeedResult
	for _, account := range DemoAccounts() {
		if _, ok := dir.Provision(account); ok {
			result.Accounts++
		}
	}

	if len(cal.Events()) == 0 {
		for _, input := range DemoEvents(now, cal.Location()) {
			cal.AddEvent(input)
			result.Events++
		}
	}

	logger.Info("demo data seeded", "accounts", result.Accounts, "events", result.Events)
	return result
}
