package scoring

import (
	"fmt"

	"github.com/okian/readcoach/internal/domain/model"
)

// Threshold maps every aggregate >= Min (up to the next threshold) to Band.
type Threshold struct {
	Min  int
	Band model.Band
}

// DefaultBands is [0,40) needs improvement, [40,70) developing,
// [70,90) proficient, [90,100] excellent.
func DefaultBands() []Threshold {
	return []Threshold{
		{Min: 0, Band: model.BandNeedsImprovement},
		{Min: 40, Band: model.BandDeveloping},
		{Min: 70, Band: model.BandProficient},
		{Min: 90, Band: model.BandExcellent},
	}
}

// validateBands checks the table starts at 0, ascends strictly and stays
// within the score range, which makes it contiguous and exhaustive.
func validateBands(bands []Threshold) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidBands)
	}
	if bands[0].Min != minScore {
		return fmt.Errorf("%w: first threshold must start at %d", ErrInvalidBands, minScore)
	}
	for i, b := range bands {
		if b.Band == "" {
			return fmt.Errorf("%w: threshold %d has no band", ErrInvalidBands, i)
		}
		if b.Min > maxScore {
			return fmt.Errorf("%w: threshold %d above %d", ErrInvalidBands, b.Min, maxScore)
		}
		if i > 0 && b.Min <= bands[i-1].Min {
			return fmt.Errorf("%w: thresholds must ascend (%d after %d)", ErrInvalidBands, b.Min, bands[i-1].Min)
		}
	}
	return nil
}

// bandFor assumes a validated table.
func bandFor(bands []Threshold, aggregate int) model.Band {
	aggregate = clampInt(aggregate)
	band := bands[0].Band
	for _, b := range bands {
		if aggregate < b.Min {
			break
		}
		band = b.Band
	}
	return band
}

// BandFor classifies aggregate with the default table.
func BandFor(aggregate int) model.Band {
	return bandFor(DefaultBands(), aggregate)
}
