package types

// QualityLevel is the discrete classification of link health. Levels
// are ordered; Worse compares by severity.
type QualityLevel string

const (
	QualityUnknown   QualityLevel = "unknown"
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityCritical  QualityLevel = "critical"
)

var qualityRank = map[QualityLevel]int{
	QualityUnknown:   0,
	QualityExcellent: 1,
	QualityGood:      2,
	QualityFair:      3,
	QualityPoor:      4,
	QualityCritical:  5,
}

var qualityLabels = map[QualityLevel]string{
	QualityUnknown:   "Warming Up...",
	QualityExcellent: "Network is Purring!",
	QualityGood:      "All Systems Go!",
	QualityFair:      "Hanging in There!",
	QualityPoor:      "Having Hiccups...",
	QualityCritical:  "Help, I'm Sick!",
}

// Label returns the human-readable mood string shown on the device
// display and status page.
func (q QualityLevel) Label() string {
	if label, ok := qualityLabels[q]; ok {
		return label
	}
	return qualityLabels[QualityUnknown]
}

// Rank returns the severity rank of the level, higher meaning worse.
// Unknown ranks below every measured level.
func (q QualityLevel) Rank() int {
	return qualityRank[q]
}

// Worse returns the more severe of the two levels.
func Worse(a, b QualityLevel) QualityLevel {
	if qualityRank[b] > qualityRank[a] {
		return b
	}
	return a
}
