package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

func TestTemporalValid(t *testing.T) {
	tests := []struct {
		name       string
		validFrom  int
		validUntil int
		year       int
		want       bool
	}{
		{"inside window", 2013, 9999, 2020, true},
		{"at window start", 2013, 9999, 2013, true},
		{"at window end", 1946, 1959, 1959, true},
		{"before window", 2013, 9999, 2012, false},
		{"after window", 1946, 1959, 1960, false},
		{"law not yet in force", 2025, 9999, 2020, false},
		{"law in first year of force", 2025, 9999, 2025, true},
		{"open window far future year", 2025, 9999, 3000, true},
		{"zero year admits everything", 2013, 9999, 0, true},
		{"corrupt window admits everything", 2020, 2010, 2015, true},
		{"corrupt window admits out of range year", 2020, 2010, 1800, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &domain.Chunk{ValidFrom: tt.validFrom, ValidUntil: tt.validUntil}
			assert.Equal(t, tt.want, TemporalValid(c, tt.year))
		})
	}
}

func TestTemporalRank(t *testing.T) {
	c := &domain.Chunk{ValidFrom: 2013, ValidUntil: 9999}

	assert.Equal(t, 1.0, TemporalRank(c, 2013))
	assert.Equal(t, 0.5, TemporalRank(c, 2014))
	assert.Equal(t, 0.5, TemporalRank(c, 2012))
	assert.Equal(t, 1.0, TemporalRank(c, 0))

	// Monotonically decreasing with distance in both directions.
	prev := TemporalRank(c, 2013)
	for year := 2014; year < 2030; year++ {
		cur := TemporalRank(c, year)
		assert.Less(t, cur, prev)
		prev = cur
	}
}
