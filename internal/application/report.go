package application

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ahrav/go-normdev/internal/domain"
)

// Headlines used in run summaries.
const (
	headlineSingle   = "A round of outlier rejection has been performed"
	headlineCombined = "Combined outlier rejection has been performed across multiple datasets"
)

// SummaryLines returns the human-readable report of a run: a headline naming
// whether the datasets were combined, and the outlier count.
func SummaryLines(s domain.Summary) []string {
	p := message.NewPrinter(language.English)

	headline := headlineSingle
	if s.Combined {
		headline = headlineCombined
	}
	lines := []string{
		headline,
		p.Sprintf("%d outliers have been identified", s.Outliers),
	}
	if n := len(s.Outcome.Ambiguous); n > 0 {
		lines = append(lines, p.Sprintf("%d observations were still under examination when the round limit was reached", n))
	}
	return lines
}

// FormatSummary joins SummaryLines into a single message.
func FormatSummary(s domain.Summary) string {
	return strings.Join(SummaryLines(s), "; ")
}
