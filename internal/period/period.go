// Package period переводит настройку месячного цикла в конкретные периоды дат.
package period

import (
	"fmt"
	"time"

	"example.com/finance-dashboard/internal/models"
)

// InvalidConfigError описывает неверную настройку месячного цикла.
type InvalidConfigError struct {
	Type   models.CycleType
	Date   int
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid monthly cycle config (type=%s, date=%d): %s", e.Type, e.Date, e.Reason)
}

// ValidateConfig проверяет тип цикла и обязательное число месяца.
func ValidateConfig(cfg models.MonthlyCycleConfig) error {
	switch cfg.Type {
	case models.CycleLastWorkingDay:
		return nil
	case models.CycleSpecificDate, models.CycleClosestWorkday:
		if cfg.Date < 1 || cfg.Date > 31 {
			return &InvalidConfigError{Type: cfg.Type, Date: cfg.Date, Reason: "date must be between 1 and 31"}
		}
		return nil
	default:
		return &InvalidConfigError{Type: cfg.Type, Date: cfg.Date, Reason: "unknown cycle type"}
	}
}

// CycleStartDate возвращает дату начала цикла в календарном месяце referenceMonth.
func CycleStartDate(cfg models.MonthlyCycleConfig, referenceMonth time.Time) (time.Time, error) {
	if err := ValidateConfig(cfg); err != nil {
		return time.Time{}, err
	}

	year, month, loc := referenceMonth.Year(), referenceMonth.Month(), referenceMonth.Location()

	switch cfg.Type {
	case models.CycleLastWorkingDay:
		return LastWorkingDay(year, month, loc), nil
	case models.CycleClosestWorkday:
		return ClosestWorkday(clampedDate(year, month, cfg.Date, loc)), nil
	default:
		return clampedDate(year, month, cfg.Date, loc), nil
	}
}

// LastWorkingDay возвращает последний будний день месяца.
func LastWorkingDay(year int, month time.Month, loc *time.Location) time.Time {
	day := time.Date(year, month, daysIn(year, month, loc), 0, 0, 0, 0, loc)
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// ClosestWorkday переносит субботу на пятницу, а воскресенье на понедельник.
func ClosestWorkday(date time.Time) time.Time {
	day := startOfDay(date)
	switch day.Weekday() {
	case time.Saturday:
		return day.AddDate(0, 0, -1)
	case time.Sunday:
		return day.AddDate(0, 0, 1)
	default:
		return day
	}
}

// CurrentPeriod возвращает период цикла, в который попадает referenceDate.
func CurrentPeriod(cfg models.MonthlyCycleConfig, referenceDate time.Time) (models.MonthlyPeriod, error) {
	if err := ValidateConfig(cfg); err != nil {
		return models.MonthlyPeriod{}, err
	}

	ref := startOfDay(referenceDate)
	month := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())

	// Перенос на будний день может сдвинуть якорь в соседний месяц,
	// поэтому проверяем три кандидата вокруг текущего месяца.
	for offset := -1; offset <= 1; offset++ {
		start, err := CycleStartDate(cfg, month.AddDate(0, offset, 0))
		if err != nil {
			return models.MonthlyPeriod{}, err
		}
		next, err := CycleStartDate(cfg, month.AddDate(0, offset+1, 0))
		if err != nil {
			return models.MonthlyPeriod{}, err
		}
		end := next.AddDate(0, 0, -1)

		if !ref.Before(start) && !ref.After(end) {
			return newPeriod(start, end), nil
		}
	}

	return models.MonthlyPeriod{}, fmt.Errorf("no cycle period contains %s", ref.Format(time.DateOnly))
}

// PastPeriods возвращает count смежных периодов, заканчивая текущим, от старых к новым.
func PastPeriods(cfg models.MonthlyCycleConfig, count int, referenceDate time.Time) ([]models.MonthlyPeriod, error) {
	if count <= 0 {
		return []models.MonthlyPeriod{}, nil
	}

	current, err := CurrentPeriod(cfg, referenceDate)
	if err != nil {
		return nil, err
	}

	periods := make([]models.MonthlyPeriod, count)
	periods[count-1] = current

	for i := count - 2; i >= 0; i-- {
		previous, err := CurrentPeriod(cfg, periods[i+1].StartDate.AddDate(0, 0, -1))
		if err != nil {
			return nil, err
		}
		periods[i] = previous
	}

	return periods, nil
}

// Contains сообщает, попадает ли дата в период; обе границы включительно.
func Contains(date time.Time, p models.MonthlyPeriod) bool {
	day := startOfDay(date.In(p.StartDate.Location()))
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// DisplayName формирует подпись периода для интерфейса.
func DisplayName(start, end time.Time) string {
	if start.Day() == 1 && end.Year() == start.Year() && end.Month() == start.Month() &&
		end.Day() == daysIn(start.Year(), start.Month(), start.Location()) {
		return start.Format("January 2006")
	}

	if start.Year() == end.Year() {
		return start.Format("2 Jan") + " - " + end.Format("2 Jan 2006")
	}

	return start.Format("2 Jan 2006") + " - " + end.Format("2 Jan 2006")
}

func newPeriod(start, end time.Time) models.MonthlyPeriod {
	return models.MonthlyPeriod{
		StartDate:   start,
		EndDate:     end,
		DisplayName: DisplayName(start, end),
	}
}

func clampedDate(year int, month time.Month, date int, loc *time.Location) time.Time {
	day := min(date, daysIn(year, month, loc))
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
