package attendance

import (
	"time"

	"github.com/trezcool/classboard/core"
)

// Calendar returns the stats of every recorded date.
func (r *Reconciler) Calendar() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	days := make(map[string]Stats, len(r.records))
	for date, rec := range r.records {
		days[date] = rec.Stats()
	}
	return days
}

// MonthlyAverage is the rounded mean of the daily percentages of the given month.
// Days without a record are left out rather than counted as 0.
func (r *Reconciler) MonthlyAverage(year int, month time.Month) int {
	return MonthlyAverage(r.Calendar(), year, month)
}

// DaysWithAttendance is the percentage of recorded days with at least one present student.
func (r *Reconciler) DaysWithAttendance() int {
	return DaysWithAttendance(r.Calendar())
}

func MonthlyAverage(days map[string]Stats, year int, month time.Month) int {
	var sum, n int
	for date, s := range days {
		t, err := core.ParseDateKey(date)
		if err != nil || t.Year() != year || t.Month() != month {
			continue
		}
		sum += s.Percentage
		n++
	}
	if n == 0 {
		return 0
	}
	return core.Round(float64(sum) / float64(n))
}

func DaysWithAttendance(days map[string]Stats) int {
	var attended int
	for _, s := range days {
		if s.Present > 0 {
			attended++
		}
	}
	return core.Percent(attended, len(days))
}
