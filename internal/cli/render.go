package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/renewal"
)

const dateLayout = "02 Jan 2006"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		Headers(headers...)
}

// RenderSessions writes one row per session followed by the page position.
func RenderSessions(w io.Writer, page *importer.SessionPage) error {
	if len(page.Sessions) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No import sessions"))
		return err
	}

	t := newTable("ID", "File", "Bank", "Status", "Transactions", "Recurring", "Uploaded")
	for _, s := range page.Sessions {
		t.Row(
			s.ID,
			s.Filename,
			s.BankName,
			StatusStyle(s.Status).Render(string(s.Status)),
			strconv.Itoa(s.Statistics.TotalTransactions),
			strconv.Itoa(s.Statistics.RecurringDetected),
			s.CreatedAt.Format(dateLayout),
		)
	}
	p := page.Pagination
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.String(),
		SubtleStyle.Render(fmt.Sprintf("Page %d of %d (%d sessions)", p.Page, max(p.Pages, 1), p.Total)))
	return err
}

// RenderSession writes a session summary and its suggestions.
func RenderSession(w io.Writer, s *model.ImportSession) error {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", s.Filename)
	fmt.Fprintf(&b, "Bank: %s\n", s.BankName)
	fmt.Fprintf(&b, "Status: %s", StatusStyle(s.Status).Render(string(s.Status)))
	if s.Status == model.SessionProcessing {
		fmt.Fprintf(&b, " (%s)", s.ProcessingStage)
	}
	b.WriteString("\n")
	if s.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", ErrorStyle.Render(s.ErrorMessage))
	}
	fmt.Fprintf(&b, "Transactions: %d\n", s.Statistics.TotalTransactions)
	fmt.Fprintf(&b, "Recurring payments: %d", s.Statistics.RecurringDetected)

	if _, err := fmt.Fprintln(w, RenderBox("Import "+s.ID, b.String())); err != nil {
		return err
	}
	if len(s.RecurringPayments) == 0 {
		return nil
	}
	return RenderSuggestions(w, s.RecurringPayments)
}

// RenderSuggestions writes a table of recurring payment suggestions.
func RenderSuggestions(w io.Writer, suggestions []model.RecurringPaymentSuggestion) error {
	t := newTable("#", "Payee", "Amount", "Frequency", "Seen", "Confidence", "Domain", "Status")
	for _, sg := range suggestions {
		confidence := fmt.Sprintf("%.0f%%", sg.Confidence*100)
		if sg.LowConfidence {
			confidence = WarningStyle.Render(confidence + " low")
		}
		t.Row(
			strconv.Itoa(sg.Index),
			sg.Payee,
			sg.Amount.Abs().StringFixed(2),
			string(sg.Frequency),
			strconv.Itoa(sg.Occurrences),
			confidence,
			string(sg.SuggestedDomain),
			string(sg.Status),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// RenderConfirmResult summarizes what a confirmation changed.
func RenderConfirmResult(w io.Writer, result *importer.ConfirmResult) error {
	lines := make([]string, 0, len(result.CreatedEntries)+2)
	for _, rec := range result.CreatedEntries {
		lines = append(lines, FormatSuccess(fmt.Sprintf("Created %s record %q (%s)", rec.Domain, rec.Title, rec.ID)))
	}
	if n := len(result.RejectedSuggestions); n > 0 {
		lines = append(lines, FormatInfo(fmt.Sprintf("Rejected %d suggestion(s)", n)))
	}
	if n := len(result.Skipped); n > 0 {
		lines = append(lines, FormatWarning(fmt.Sprintf("Skipped %d suggestion(s) already decided", n)))
	}
	if len(lines) == 0 {
		lines = append(lines, FormatInfo("Nothing to confirm"))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// RenderReminders writes upcoming or overdue renewals.
func RenderReminders(w io.Writer, reminders []model.Reminder) error {
	if len(reminders) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No renewals"))
		return err
	}

	t := newTable("Record", "Title", "Domain", "Ends", "Days", "Urgency")
	for _, r := range reminders {
		days := strconv.Itoa(r.DaysUntil)
		if r.Overdue() {
			days = ErrorStyle.Render(fmt.Sprintf("%d overdue", -r.DaysUntil))
			if r.Severity != "" {
				days += " (" + string(r.Severity) + ")"
			}
		}
		t.Row(
			r.RecordID,
			r.Title,
			string(r.Domain),
			r.EndDate.Format(dateLayout),
			days,
			UrgencyStyle(r.Urgency).Render(string(r.Urgency)),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// RenderTimeline writes one line per month with its urgency counts.
func RenderTimeline(w io.Writer, buckets []renewal.TimelineBucket) error {
	var b strings.Builder
	for _, bucket := range buckets {
		fmt.Fprintf(&b, "%s %s  %s %s %s\n",
			CalendarIcon,
			BoldStyle.Render(bucket.Start.Format("Jan 2006")),
			UrgencyStyle(model.UrgencyCritical).Render(fmt.Sprintf("%d critical", bucket.Counts[model.UrgencyCritical])),
			UrgencyStyle(model.UrgencyImportant).Render(fmt.Sprintf("%d important", bucket.Counts[model.UrgencyImportant])),
			UrgencyStyle(model.UrgencyStrategic).Render(fmt.Sprintf("%d strategic", bucket.Counts[model.UrgencyStrategic])),
		)
		for _, r := range bucket.Entries {
			fmt.Fprintf(&b, "    %s  %s\n", r.EndDate.Format(dateLayout), r.Title)
		}
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}

// RenderSweep summarizes a reminder sweep.
func RenderSweep(w io.Writer, result *renewal.SweepResult) error {
	summary := fmt.Sprintf("Processed: %d\nSent: %d\nFailed: %d",
		result.ProcessedCount, result.RemindersSent, result.Failed)
	_, err := fmt.Fprintln(w, RenderBox("Reminder sweep", summary))
	return err
}

// RenderRuleSets lists detection rule sets.
func RenderRuleSets(w io.Writer, sets []model.DetectionRuleSet) error {
	t := newTable("ID", "Name", "Rules", "Version", "Min confidence", "Owner")
	for _, rs := range sets {
		owner := rs.OwnerID
		if rs.IsDefault {
			owner = SuccessStyle.Render("default")
		}
		t.Row(
			rs.ID,
			rs.Name,
			strconv.Itoa(len(rs.CategoryRules)),
			strconv.Itoa(rs.Version),
			fmt.Sprintf("%.2f", rs.Settings.MinConfidenceThreshold),
			owner,
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
