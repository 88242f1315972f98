package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/lock"
	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/client/services"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
)

var errSignInFirst = errors.New("sign in first (journal login)")

// dateKey resolves "", "today", "yesterday" or a YYYY-MM-DD key.
func (a *App) dateKey(s string) (string, error) {
	today := a.journal.TodayKey()
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return today, nil
	case "yesterday":
		t, _ := models.ParseDateKey(today, time.UTC)
		return models.DateKey(t.AddDate(0, 0, -1), time.UTC), nil
	}
	if !models.ValidDateKey(s) {
		return "", fmt.Errorf("%q: %w", s, common.ErrInvalidDateKey)
	}
	return s, nil
}

// notSynced prints the passive warning for a local-only save and swallows it.
func (a *App) notSynced(err error) error {
	if errors.Is(err, services.ErrNotSynced) {
		warn(a.out, "saved on this device; it will sync when the server is reachable")
		return nil
	}
	return err
}

func (a *App) Login(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		t, err := GetToken(a.reader, a.out)
		if err != nil {
			return err
		}
		token = t
	}

	sc, migrated, err := a.session.SignIn(ctx, token)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	fmt.Fprintf(a.out, "Signed in as %s\n", sc.UserID)
	if migrated {
		fmt.Fprintln(a.out, "Imported the entries written on this device before signing in.")
	}

	if err := a.journal.Load(ctx); err != nil {
		_ = a.notSynced(err)
	}
	if err := a.assessments.Refresh(ctx); err != nil {
		a.log.Warn(ctx, "assessment not refreshed", "error", err)
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *App) Show(_ context.Context, date string) error {
	key, err := a.dateKey(date)
	if err != nil {
		return err
	}
	renderEntry(a.out, a.journal.Entry(key))
	return nil
}

// SetOptions is an edit from the command line. Empty Mood and Reason and a
// nil Notes leave the field unchanged.
type SetOptions struct {
	Date   string
	Mood   string
	Reason string
	Notes  *string
}

func (a *App) Set(ctx context.Context, o SetOptions) error {
	key, err := a.dateKey(o.Date)
	if err != nil {
		return err
	}

	var d services.Draft
	if o.Mood != "" {
		m, ok := models.ParseMood(o.Mood)
		if !ok {
			return fmt.Errorf("unknown mood %q, want one of %v: %w", o.Mood, models.Moods, common.ErrorValidation)
		}
		d.Mood = &m
	}
	if o.Reason != "" {
		r, ok := models.ParseReason(o.Reason)
		if !ok {
			return fmt.Errorf("unknown reason %q, want one of %v: %w", o.Reason, models.Reasons, common.ErrorValidation)
		}
		d.Reason = &r
	}
	d.Notes = o.Notes

	e, err := a.journal.Edit(ctx, key, d)
	if errors.Is(err, lock.ErrDayLocked) {
		return fmt.Errorf("%s is submitted; run reset to change it", key)
	}
	if err != nil {
		return err
	}

	if o.Notes != nil && models.WordCount(*o.Notes) > models.MaxNoteWords {
		warn(a.out, "notes shortened to %d words", models.MaxNoteWords)
	}
	renderEntry(a.out, e)
	return nil
}

func (a *App) Submit(ctx context.Context, date string) error {
	key, err := a.dateKey(date)
	if err != nil {
		return err
	}
	e, err := a.journal.Submit(ctx, key)
	if err := a.notSynced(err); err != nil {
		return err
	}
	renderEntry(a.out, e)
	return nil
}

func (a *App) Reset(ctx context.Context, date string) error {
	key, err := a.dateKey(date)
	if err != nil {
		return err
	}
	e, err := a.journal.Reset(ctx, key)
	if err := a.notSynced(err); err != nil {
		return err
	}
	renderEntry(a.out, e)
	return nil
}

func (a *App) Week(_ context.Context) error {
	renderWeek(a.out, a.journal.Days(7), a.journal.TodayKey())
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errSignInFirst
	}
	if err := a.journal.Load(ctx); err != nil {
		return err
	}
	if n := len(a.journal.Pending()); n > 0 {
		warn(a.out, "%d day(s) still waiting to sync", n)
		return nil
	}
	fmt.Fprintln(a.out, "Everything is synced")
	return nil
}

// parseAnswers accepts "1 2 0 ..." or "1,2,0,...".
func parseAnswers(args []string) ([]int, error) {
	fields := strings.FieldsFunc(strings.Join(args, " "), func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != models.QuestionCount {
		return nil, fmt.Errorf("want %d answers, got %d: %w", models.QuestionCount, len(fields), common.ErrorValidation)
	}

	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > models.MaxAnswer {
			return nil, fmt.Errorf("answer %d must be 0-%d: %w", i+1, models.MaxAnswer, common.ErrorValidation)
		}
		out[i] = n
	}
	return out, nil
}

func (a *App) askAnswers() ([]string, error) {
	fmt.Fprintln(a.out, "Over the last two weeks, how often have you been bothered by the following?")
	fmt.Fprintln(a.out, "0 = not at all, 1 = several days, 2 = more than half the days, 3 = nearly every day")

	out := make([]string, 0, models.QuestionCount)
	for i, q := range models.Questions {
		ans, err := GetSimpleText(a.reader, fmt.Sprintf("%d/%d %s", i+1, models.QuestionCount, q), a.out)
		if err != nil {
			return nil, err
		}
		out = append(out, ans)
	}
	return out, nil
}

func (a *App) Assess(ctx context.Context, args []string) error {
	st, err := a.assessments.Status(ctx)
	if err != nil {
		return err
	}
	if st.Locked {
		renderAssessment(a.out, st, time.Now())
		return common.ErrAssessmentLocked
	}

	if len(args) == 0 {
		if args, err = a.askAnswers(); err != nil {
			return err
		}
	}
	answers, err := parseAnswers(args)
	if err != nil {
		return err
	}

	_, err = a.assessments.Submit(ctx, answers)
	if err := a.notSynced(err); err != nil {
		return err
	}
	return a.AssessStatus(ctx)
}

func (a *App) AssessStatus(ctx context.Context) error {
	st, err := a.assessments.Status(ctx)
	if err != nil {
		return err
	}
	renderAssessment(a.out, st, time.Now())
	return nil
}

func (a *App) Terms(ctx context.Context, accept bool) error {
	if accept {
		if err := a.session.AcceptTerms(ctx); err != nil {
			return err
		}
	}
	ok, err := a.session.TermsAccepted(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "Terms accepted")
	} else {
		fmt.Fprintln(a.out, "Terms not accepted yet (journal terms accept)")
	}
	return nil
}

func (a *App) Export(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errSignInFirst
	}
	if err := a.journal.Flush(ctx); err != nil {
		_ = a.notSynced(fmt.Errorf("%w: %v", services.ErrNotSynced, err))
	}

	link, err := a.client.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintln(a.out, link.URL)
	fmt.Fprintln(a.out, faint.Sprintf("link expires %s", link.ExpiresAt.Local().Format("2006-01-02 15:04")))
	return nil
}

func (a *App) getStatus() string {
	s := ""
	if sc := a.session.Current(); !sc.Anonymous() {
		s = sc.UserID + " "
	}
	s += string(a.Mode())
	if n := len(a.journal.Pending()); n > 0 && a.isLoggedIn() {
		s += fmt.Sprintf(", %d pending", n)
	}
	return fmt.Sprintf("(%s)", s)
}
