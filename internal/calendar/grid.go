package calendar

import "time"

const (
	GridRows    = 6
	GridColumns = 7
)

// MonthGrid lays out one month as six weeks starting on Sunday. A zero cell is
// blank.
type MonthGrid struct {
	Year         int
	Month        time.Month
	FirstWeekday int
	Days         int
	Cells        [GridRows][GridColumns]int
}

// NewMonthGrid computes the grid for month in year. Day 1 lands in the column
// of its weekday (0 = Sunday) in the first row.
func NewMonthGrid(year int, month time.Month, loc *time.Location) MonthGrid {
	if loc == nil {
		loc = time.Local
	}
	grid := MonthGrid{
		Year:         year,
		Month:        month,
		FirstWeekday: FirstWeekday(year, month, loc),
		Days:         DaysIn(year, month),
	}
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridColumns; col++ {
			day := row*GridColumns + col - grid.FirstWeekday + 1
			if day >= 1 && day <= grid.Days {
				grid.Cells[row][col] = day
			}
		}
	}
	return grid
}

// FirstWeekday returns the weekday index (0 = Sunday) of the first day of
// month.
func FirstWeekday(year int, month time.Month, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return int(time.Date(year, month, 1, 0, 0, 0, 0, loc).Weekday())
}

// DaysIn returns the number of days in month, accounting for leap years.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PopulatedCells counts the non-blank cells.
func (g MonthGrid) PopulatedCells() int {
	n := 0
	for _, row := range g.Cells {
		for _, day := range row {
			if day != 0 {
				n++
			}
		}
	}
	return n
}

// DayCell is one populated cell of a MonthView.
type DayCell struct {
	Day       int
	Date      time.Time
	HasEvents bool
}

// MonthView is a MonthGrid with a has-events marker per populated cell.
type MonthView struct {
	Grid  MonthGrid
	Cells [GridRows][GridColumns]*DayCell
}

// MonthView builds the grid for month and asks EventsForDate once per
// populated cell whether the day has events.
func (c *Calendar) MonthView(year int, month time.Month) MonthView {
	grid := NewMonthGrid(year, month, c.location)
	view := MonthView{Grid: grid}
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridColumns; col++ {
			day := grid.Cells[row][col]
			if day == 0 {
				continue
			}
			date := time.Date(year, month, day, 0, 0, 0, 0, c.location)
			view.Cells[row][col] = &DayCell{
				Day:       day,
				Date:      date,
				HasEvents: len(c.EventsForDate(date)) > 0,
			}
		}
	}
	return view
}
