package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Financial years start on 1 April. Q4 runs January-March of the following
// calendar year.
var (
	quarterStartMonth = [5]time.Month{0, time.April, time.July, time.October, time.January}
	quarterEndMonth   = [5]time.Month{0, time.June, time.September, time.December, time.March}
)

// Quarter is one quarter of a financial year.
type Quarter struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// NewQuarter validates and builds a Quarter.
func NewQuarter(year, quarter int) (Quarter, error) {
	if quarter < 1 || quarter > 4 {
		return Quarter{}, eris.New("A quarter must be either 1, 2, 3 or 4")
	}
	if year < 1950 || year >= 2100 {
		return Quarter{}, eris.New("Year must be between 1950 and 2100")
	}
	return Quarter{Year: year, Quarter: quarter}, nil
}

func (q Quarter) calendarYear() int {
	if q.Quarter == 4 {
		return q.Year + 1
	}
	return q.Year
}

// StartDate returns the first day of the quarter.
func (q Quarter) StartDate() time.Time {
	return time.Date(q.calendarYear(), quarterStartMonth[q.Quarter], 1, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the last day of the quarter.
func (q Quarter) EndDate() time.Time {
	first := time.Date(q.calendarYear(), quarterEndMonth[q.Quarter]+1, 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, -1)
}

// FinancialYear returns the year the quarter belongs to.
func (q Quarter) FinancialYear() FinancialYear {
	return FinancialYear{Year: q.Year}
}

// String renders e.g. "Q4 18/19".
func (q Quarter) String() string {
	return fmt.Sprintf("Q%d %02d/%02d", q.Quarter, q.Year%100, (q.Year+1)%100)
}

// FinancialYear is an April-to-March reporting year.
type FinancialYear struct {
	Year int `json:"year"`
}

// NewFinancialYear validates and builds a FinancialYear.
func NewFinancialYear(year int) (FinancialYear, error) {
	if year < 1950 || year >= 2100 {
		return FinancialYear{}, eris.New("A year must be an integer between 1950 and 2100")
	}
	return FinancialYear{Year: year}, nil
}

// Quarters returns Q1..Q4.
func (fy FinancialYear) Quarters() [4]Quarter {
	var qs [4]Quarter
	for i := range qs {
		qs[i] = Quarter{Year: fy.Year, Quarter: i + 1}
	}
	return qs
}

// StartDate is 1 April of the year.
func (fy FinancialYear) StartDate() time.Time { return fy.Quarters()[0].StartDate() }

// EndDate is 31 March of the following year.
func (fy FinancialYear) EndDate() time.Time { return fy.Quarters()[3].EndDate() }

// Contains reports whether the date falls inside the financial year.
func (fy FinancialYear) Contains(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(fy.StartDate()) && !d.After(fy.EndDate())
}

// String renders e.g. "FY2018/19".
func (fy FinancialYear) String() string {
	return fmt.Sprintf("FY%d/%02d", fy.Year, (fy.Year+1)%100)
}
