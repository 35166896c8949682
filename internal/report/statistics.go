// Package report renders the plain-text training statistics.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/claude/treningslogg/internal/models"
)

var monthNames = [...]string{
	"januar", "februar", "mars", "april", "mai", "juni",
	"juli", "august", "september", "oktober", "november", "desember",
}

// MonthName returns the Norwegian name of m.
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// FormatDate formats t the Norwegian medium way, e.g. "2. mai 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d. %s %d", t.Day(), MonthName(t.Month()), t.Year())
}

// Statistics summarizes sessions relative to now: totals, the current month
// and year by session type, the monthly distribution of the current year,
// and body weight extremes. Dates are evaluated in now's location.
func Statistics(sessions []models.WorkoutSession, now time.Time) string {
	loc := now.Location()
	year, month, _ := now.Date()

	var thisMonth, thisYear []models.WorkoutSession
	var perMonth [12]int
	for _, s := range sessions {
		y, m, _ := s.Date.In(loc).Date()
		if y != year {
			continue
		}
		thisYear = append(thisYear, s)
		perMonth[m-1]++
		if m == month {
			thisMonth = append(thisMonth, s)
		}
	}

	var b strings.Builder
	b.WriteString("TRAINING STATISTICS\n\n")
	fmt.Fprintf(&b, "Total workouts: %d\n\n", len(sessions))

	fmt.Fprintf(&b, "THIS MONTH (%s)\n", MonthName(month))
	fmt.Fprintf(&b, "Number of workouts: %d\n", len(thisMonth))
	writeDistribution(&b, thisMonth)
	b.WriteString("\n")

	fmt.Fprintf(&b, "THIS YEAR (%d)\n", year)
	fmt.Fprintf(&b, "Number of workouts: %d\n", len(thisYear))
	writeDistribution(&b, thisYear)
	b.WriteString("\n")

	fmt.Fprintf(&b, "MONTHLY DISTRIBUTION %d:\n", year)
	for i, n := range perMonth {
		if n > 0 {
			fmt.Fprintf(&b, "%s: %d workouts\n", monthNames[i], n)
		}
	}

	writeWeights(&b, sessions, loc)
	return b.String()
}

func writeDistribution(b *strings.Builder, sessions []models.WorkoutSession) {
	counts := map[string]int{}
	for _, s := range sessions {
		counts[s.Type.Label()]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	b.WriteString("Distribution:\n")
	for _, l := range labels {
		n := counts[l]
		suffix := "s"
		if n == 1 {
			suffix = ""
		}
		fmt.Fprintf(b, "- %s: %d workout%s\n", l, n, suffix)
	}
}

func writeWeights(b *strings.Builder, sessions []models.WorkoutSession, loc *time.Location) {
	var weighed []models.WorkoutSession
	for _, s := range sessions {
		if s.BodyWeight != nil {
			weighed = append(weighed, s)
		}
	}
	if len(weighed) == 0 {
		return
	}

	last, lowest, highest := weighed[0], weighed[0], weighed[0]
	for _, s := range weighed[1:] {
		if s.Date.After(last.Date) {
			last = s
		}
		if *s.BodyWeight < *lowest.BodyWeight {
			lowest = s
		}
		if *s.BodyWeight > *highest.BodyWeight {
			highest = s
		}
	}

	b.WriteString("\nWEIGHT STATISTICS\n")
	writeWeight(b, "Last measured weight", last, loc)
	writeWeight(b, "Lowest weight", lowest, loc)
	writeWeight(b, "Highest weight", highest, loc)
}

func writeWeight(b *strings.Builder, label string, s models.WorkoutSession, loc *time.Location) {
	fmt.Fprintf(b, "%s: %s kg (%s)\n", label, formatKg(*s.BodyWeight), FormatDate(s.Date.In(loc)))
}

// formatKg drops trailing zeros: 82 -> "82", 81.5 -> "81.5".
func formatKg(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
