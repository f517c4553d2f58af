package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReformCategory(t *testing.T) {
	tests := []struct {
		in   string
		want ReformCategory
		err  bool
	}{
		{"integral", ReformIntegral, false},
		{" Structural ", ReformStructural, false},
		{"COSMETIC", ReformCosmetic, false},
		{"partial", ReformPartial, false},
		{"total", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReformCategory(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReformQuality(t *testing.T) {
	q, err := ParseReformQuality("Luxury")
	require.NoError(t, err)
	assert.Equal(t, QualityLuxury, q)

	_, err = ParseReformQuality("premium")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown reform quality")
}

func TestZoneStats_ReformedReference(t *testing.T) {
	z := ZoneStats{AvgPricePerArea: 4200, AvgReformedPricePerArea: 5100}
	assert.Equal(t, 5100.0, z.ReformedReference())

	z.AvgReformedPricePerArea = 0
	assert.Equal(t, 4200.0, z.ReformedReference())
}

func TestAttributes_HasLocation(t *testing.T) {
	assert.False(t, Attributes{}.HasLocation())
}
