package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/services"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

var (
	bold      = color.New(color.Bold)
	faint     = color.New(color.Faint)
	submitted = color.New(color.FgGreen)
	warning   = color.New(color.FgYellow)
)

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func status(e models.Entry) string {
	switch {
	case e.DaySubmitted:
		return "submitted"
	case e.IsEmpty():
		return "-"
	default:
		return "draft"
	}
}

func renderEntry(w io.Writer, e models.Entry) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.Wrap = true
	tbl.MaxColWidth = 60

	st := status(e)
	if e.DaySubmitted {
		st = submitted.Sprint(st)
	}
	tbl.AddRow(bold.Sprint("Date"), e.DateKey)
	tbl.AddRow(bold.Sprint("Mood"), orDash(string(e.Mood)))
	tbl.AddRow(bold.Sprint("Reason"), orDash(string(e.Reason)))
	tbl.AddRow(bold.Sprint("Notes"), orDash(e.Notes))
	tbl.AddRow(bold.Sprint("Status"), st)
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(w, tbl)
}

// renderWeek prints one row per day, oldest first; today is highlighted.
func renderWeek(w io.Writer, days []models.Entry, today string) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40

	tbl.AddRow(bold.Sprint("DATE"), bold.Sprint("DAY"), bold.Sprint("MOOD"), bold.Sprint("REASON"), bold.Sprint("STATUS"), bold.Sprint("NOTES"))
	for _, e := range days {
		day := ""
		if t, ok := models.ParseDateKey(e.DateKey, time.UTC); ok {
			day = t.Weekday().String()[:3]
		}

		date := e.DateKey
		if e.DateKey == today {
			date = bold.Sprint(date)
		}
		st := status(e)
		switch {
		case e.DaySubmitted:
			st = submitted.Sprint(st)
		case e.IsEmpty():
			st = faint.Sprint(st)
		}

		tbl.AddRow(date, day, orDash(string(e.Mood)), orDash(string(e.Reason)), st, e.Notes)
	}

	_, _ = fmt.Fprintln(w, tbl)
}

func renderAssessment(w io.Writer, st services.AssessmentStatus, now time.Time) {
	if st.Latest == nil {
		_, _ = fmt.Fprintln(w, "No self-check yet.")
		return
	}

	a := st.Latest
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Score"), fmt.Sprintf("%d / %d", a.Score, models.QuestionCount*models.MaxAnswer))
	tbl.AddRow(bold.Sprint("Severity"), a.Severity)
	if a.LastSubmittedAt != nil {
		tbl.AddRow(bold.Sprint("Taken"), time.UnixMilli(*a.LastSubmittedAt).In(now.Location()).Format("2006-01-02 15:04"))
	}
	if st.Locked {
		tbl.AddRow(bold.Sprint("Next"), warning.Sprintf("available %s", st.UnlocksAt.In(now.Location()).Format("2006-01-02 15:04")))
	} else {
		tbl.AddRow(bold.Sprint("Next"), "available now")
	}
	tbl.RightAlign(0)

	_, _ = fmt.Fprintln(w, tbl)
}

func warn(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, warning.Sprintf("! "+format, args...))
}
