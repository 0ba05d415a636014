package forecast

import "time"

// TradingDaysAfter returns the next n weekdays after last. IDX holidays are
// not modelled.
func TradingDaysAfter(last time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	d := last
	for len(dates) < n {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
