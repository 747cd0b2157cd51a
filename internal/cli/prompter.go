package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/the-paperwork-must-flow/internal/importer"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
	"github.com/Veraticus/the-paperwork-must-flow/internal/pattern"
)

// errFinished ends a review early; decisions made so far are kept.
var errFinished = errors.New("review finished")

// Prompter walks the user through the pending suggestions of a session.
type Prompter struct {
	reader *NonBlockingReader
	writer io.Writer
}

// NewPrompter creates a prompter reading answers from reader.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{reader: NewNonBlockingReader(reader), writer: writer}
}

// ReviewSuggestions asks for a decision on every pending suggestion and returns
// the confirmations to submit. Skipped suggestions stay pending.
func (p *Prompter) ReviewSuggestions(ctx context.Context, suggestions []model.RecurringPaymentSuggestion) ([]importer.Confirmation, error) {
	var confirmations []importer.Confirmation
	for _, sg := range suggestions {
		if sg.Status != model.SuggestionPending {
			continue
		}
		c, err := p.review(ctx, sg)
		if errors.Is(err, errFinished) {
			break
		}
		if err != nil {
			return nil, err
		}
		if c != nil {
			confirmations = append(confirmations, *c)
		}
	}
	return confirmations, nil
}

func (p *Prompter) review(ctx context.Context, sg model.RecurringPaymentSuggestion) (*importer.Confirmation, error) {
	if _, err := fmt.Fprintln(p.writer, RenderBox(fmt.Sprintf("Suggestion %d: %s", sg.Index, sg.Payee), describe(sg))); err != nil {
		return nil, fmt.Errorf("failed to write suggestion: %w", err)
	}

	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("[a]ccept, [r]eject, [d]omain, [s]kip, [q]uit")); err != nil {
			return nil, fmt.Errorf("failed to write prompt: %w", err)
		}
		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(answer) {
		case "a", "accept":
			return &importer.Confirmation{SuggestionIndex: sg.Index, Action: importer.ActionAccept}, nil
		case "r", "reject":
			return &importer.Confirmation{SuggestionIndex: sg.Index, Action: importer.ActionReject}, nil
		case "d", "domain":
			domain, err := p.askDomain(ctx)
			if err != nil {
				return nil, err
			}
			return &importer.Confirmation{
				SuggestionIndex: sg.Index,
				Action:          importer.ActionAccept,
				Modifications:   &importer.Modifications{Domain: domain},
			}, nil
		case "s", "skip":
			return nil, nil
		case "q", "quit":
			return nil, errFinished
		default:
			if _, err := fmt.Fprintln(p.writer, FormatWarning("Unknown choice "+answer)); err != nil {
				return nil, fmt.Errorf("failed to write warning: %w", err)
			}
		}
	}
}

func (p *Prompter) askDomain(ctx context.Context) (model.Domain, error) {
	names := make([]string, 0, len(model.AllDomains()))
	for _, d := range model.AllDomains() {
		names = append(names, string(d))
	}
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt("Domain ("+strings.Join(names, ", ")+")")); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}
		answer, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if d := model.Domain(strings.ToLower(answer)); d.IsValid() {
			return d, nil
		}
		if _, err := fmt.Fprintln(p.writer, FormatWarning("Unknown domain "+answer)); err != nil {
			return "", fmt.Errorf("failed to write warning: %w", err)
		}
	}
}

func describe(sg model.RecurringPaymentSuggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Amount: %s %s\n", sg.Amount.Abs().StringFixed(2), sg.Frequency)
	fmt.Fprintf(&b, "Record: %s\n", sg.SuggestedEntry.Title)
	if sg.SuggestedDomain != "" {
		fmt.Fprintf(&b, "Domain: %s (%.0f%%)\n", sg.SuggestedDomain, sg.DomainConfidence*100)
	}
	confidence := fmt.Sprintf("%.0f%%", sg.Confidence*100)
	if sg.LowConfidence {
		confidence = WarningStyle.Render(confidence + ", low")
	}
	fmt.Fprintf(&b, "Confidence: %s\n", confidence)
	b.WriteString(SubtleStyle.Render(pattern.Reason(sg)))
	return b.String()
}
