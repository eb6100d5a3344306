package calendar_test

import (
	"testing"
	"time"

	"github.com/example/campus-portal/internal/calendar"
	"github.com/example/campus-portal/internal/testfixtures"
)

func TestDaysIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2025, time.January, 31},
		{2025, time.April, 30},
		{2025, time.February, 28},
		{2024, time.February, 29},
		{2000, time.February, 29},
		{1900, time.February, 28},
		{2025, time.December, 31},
	}
	for _, tc := range tests {
		if got := calendar.DaysIn(tc.year, tc.month); got != tc.want {
			t.Fatalf("DaysIn(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestNewMonthGrid(t *testing.T) {
	t.Parallel()

	t.Run("thirty day month starting on Wednesday", func(t *testing.T) {
		t.Parallel()
		// April 2026 starts on a Wednesday.
		grid := calendar.NewMonthGrid(2026, time.April, time.UTC)
		if grid.FirstWeekday != 3 {
			t.Fatalf("expected first weekday 3, got %d", grid.FirstWeekday)
		}
		if grid.Cells[0][3] != 1 {
			t.Fatalf("expected day 1 at row 0 column 3, got %d", grid.Cells[0][3])
		}
		for col := 0; col < 3; col++ {
			if grid.Cells[0][col] != 0 {
				t.Fatalf("expected blank cell before day 1 at column %d", col)
			}
		}
		if got := grid.PopulatedCells(); got != 30 {
			t.Fatalf("expected 30 populated cells, got %d", got)
		}
	})

	t.Run("every month fits in six rows", func(t *testing.T) {
		t.Parallel()
		for year := 2020; year <= 2028; year++ {
			for month := time.January; month <= time.December; month++ {
				grid := calendar.NewMonthGrid(year, month, time.UTC)
				if got := grid.PopulatedCells(); got != grid.Days {
					t.Fatalf("%d-%02d: expected %d populated cells, got %d", year, month, grid.Days, got)
				}
				previous := 0
				for _, row := range grid.Cells {
					for _, day := range row {
						if day == 0 {
							continue
						}
						if day != previous+1 {
							t.Fatalf("%d-%02d: expected day %d, got %d", year, month, previous+1, day)
						}
						previous = day
					}
				}
			}
		}
	})
}

func TestCalendarMonthView(t *testing.T) {
	t.Parallel()

	cal := newCalendar(testfixtures.NewClock(at(1, 0, 0)))
	cal.AddEvent(calendar.EventInput{Title: "Shark Tank Competition", Start: at(17, 14, 0), End: at(17, 18, 0)})

	view := cal.MonthView(2025, time.March)
	marked := 0
	for _, row := range view.Cells {
		for _, cell := range row {
			if cell == nil || !cell.HasEvents {
				continue
			}
			marked++
			if cell.Day != 17 {
				t.Fatalf("expected only day 17 to be marked, got %d", cell.Day)
			}
		}
	}
	if marked != 1 {
		t.Fatalf("expected exactly one marked cell, got %d", marked)
	}
	// March 2025 starts on a Saturday.
	if view.Cells[0][6] == nil || view.Cells[0][6].Day != 1 {
		t.Fatalf("expected day 1 in the last column of the first row")
	}
	if view.Cells[0][0] != nil {
		t.Fatalf("expected leading cells to be blank")
	}
}
