package services

import (
	"math"
	"time"
)

// SM-2 scheduling. Pure functions, no I/O: the service layer feeds in card
// state and persists the result.

type ReviewQuality int

const (
	QualityAgain ReviewQuality = 0
	QualityHard  ReviewQuality = 1
	QualityGood  ReviewQuality = 2
	QualityEasy  ReviewQuality = 3
)

const (
	MinEaseFactor   = 1.3
	MaxEaseFactor   = 3.0
	MaxIntervalDays = 365
)

func (q ReviewQuality) Valid() bool {
	return q >= QualityAgain && q <= QualityEasy
}

// sm2Scale maps the four-button answer onto the classical 0..5 SM-2 scale.
func (q ReviewQuality) sm2Scale() float64 {
	switch q {
	case QualityAgain:
		return 0
	case QualityHard:
		return 2
	case QualityGood:
		return 4
	default:
		return 5
	}
}

func (q ReviewQuality) String() string {
	switch q {
	case QualityAgain:
		return "again"
	case QualityHard:
		return "hard"
	case QualityGood:
		return "good"
	default:
		return "easy"
	}
}

// nextEaseFactor applies the SM-2 ease adjustment and clamps the result so a
// card can neither collapse into daily reviews nor run away.
func nextEaseFactor(ef float64, quality ReviewQuality) float64 {
	q := quality.sm2Scale()
	ef = ef + (0.1 - (5-q)*(0.08+(5-q)*0.02))

	if ef < MinEaseFactor {
		ef = MinEaseFactor
	}
	if ef > MaxEaseFactor {
		ef = MaxEaseFactor
	}
	return ef
}

// nextInterval computes the review interval in days.
// Again is a hard reset to 1 day regardless of history.
func nextInterval(previousInterval, reviewCount int, ef float64, quality ReviewQuality) int {
	if quality == QualityAgain {
		return 1
	}

	var interval int
	switch reviewCount {
	case 0:
		interval = 1
	case 1:
		interval = 6
	default:
		interval = int(math.Round(float64(previousInterval) * ef))
	}

	switch quality {
	case QualityEasy:
		interval = int(math.Round(float64(interval) * 1.3))
	case QualityHard:
		interval = int(math.Round(float64(interval) * 0.6))
	}

	if interval < 1 {
		interval = 1
	}
	if interval > MaxIntervalDays {
		interval = MaxIntervalDays
	}
	return interval
}

// nextReview runs one full SM-2 step for a card.
func nextReview(ef float64, previousInterval, reviewCount int, quality ReviewQuality, today time.Time) (newEF float64, newInterval int, nextDate time.Time) {
	newEF = nextEaseFactor(ef, quality)
	newInterval = nextInterval(previousInterval, reviewCount, newEF, quality)
	nextDate = today.AddDate(0, 0, newInterval)
	return newEF, newInterval, nextDate
}
