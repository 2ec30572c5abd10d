package testutils

import (
	"fmt"
	"strings"
)

// DetectionMetrics compares the rows a rejection run flagged with the rows
// that were planted as outliers.
type DetectionMetrics struct {
	// Confusion counts
	TruePositives  int // Planted rows that were flagged
	FalsePositives int // Clean rows that were flagged
	FalseNegatives int // Planted rows that were kept
	TrueNegatives  int // Clean rows that were kept

	// Derived rates
	Precision         float64 // Flagged rows that were planted
	Recall            float64 // Planted rows that were flagged
	FalsePositiveRate float64 // Clean rows that were flagged
}

// ScoreDetection computes DetectionMetrics for a table of total rows.
// Rates with an empty denominator are reported as 1 for precision and recall
// and 0 for the false positive rate, so a run that correctly flags nothing
// scores perfectly.
func ScoreDetection(planted, flagged []int, total int) DetectionMetrics {
	isPlanted := make(map[int]bool, len(planted))
	for _, row := range planted {
		isPlanted[row] = true
	}

	var m DetectionMetrics
	for _, row := range flagged {
		if isPlanted[row] {
			m.TruePositives++
		} else {
			m.FalsePositives++
		}
	}
	m.FalseNegatives = len(isPlanted) - m.TruePositives
	m.TrueNegatives = total - len(isPlanted) - m.FalsePositives

	m.Precision = ratio(m.TruePositives, m.TruePositives+m.FalsePositives, 1)
	m.Recall = ratio(m.TruePositives, m.TruePositives+m.FalseNegatives, 1)
	m.FalsePositiveRate = ratio(m.FalsePositives, m.FalsePositives+m.TrueNegatives, 0)
	return m
}

func ratio(num, den int, empty float64) float64 {
	if den == 0 {
		return empty
	}
	return float64(num) / float64(den)
}

// GenerateReport creates a human-readable report of the metrics.
func (m DetectionMetrics) GenerateReport() string {
	var b strings.Builder
	b.WriteString("=== Outlier Detection Report ===\n\n")
	fmt.Fprintf(&b, "  Precision: %.2f%%\n", m.Precision*100)
	fmt.Fprintf(&b, "  Recall: %.2f%%\n", m.Recall*100)
	fmt.Fprintf(&b, "  False Positive Rate: %.2f%%\n", m.FalsePositiveRate*100)
	b.WriteString("\nConfusion:\n")
	fmt.Fprintf(&b, "  True Positives: %d\n", m.TruePositives)
	fmt.Fprintf(&b, "  False Positives: %d\n", m.FalsePositives)
	fmt.Fprintf(&b, "  False Negatives: %d\n", m.FalseNegatives)
	fmt.Fprintf(&b, "  True Negatives: %d\n", m.TrueNegatives)
	return b.String()
}
