package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents_RoundsHalfUpOnce(t *testing.T) {
	tests := []struct {
		in   string
		want Cents
	}{
		{"10", 1000},
		{"10.00", 1000},
		{"12.345", 1235},
		{"12.344", 1234},
		{"0.005", 1},
		{"0.004", 0},
		{" 3.5 ", 350},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCents(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCents_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"ten dollars", "", "NaN", "Inf", "1,00"} {
		_, err := ParseCents(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrInvalidAmount), "input %q", in)
	}
}

func TestParseCents_RejectsOverflow(t *testing.T) {
	_, err := ParseCents("1000000000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestValidateContribution(t *testing.T) {
	assert.NoError(t, ValidateContribution(1))
	assert.NoError(t, ValidateContribution(MaxContributionCents))
	assert.ErrorIs(t, ValidateContribution(0), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateContribution(-100), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateContribution(MaxContributionCents+1), ErrInvalidAmount)
}

func TestCents_String(t *testing.T) {
	assert.Equal(t, "12.00", Cents(1200).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "0.00", Cents(0).String())
}

func TestCents_SubFloor(t *testing.T) {
	assert.Equal(t, Cents(200), Cents(500).SubFloor(300))
	assert.Equal(t, Cents(0), Cents(500).SubFloor(1000))
}

func TestDay_DaysUntil(t *testing.T) {
	d, err := Day("2026-10-11").DaysUntil("2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, int64(3), d)

	d, err = Day("2026-10-14").DaysUntil("2026-10-11")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), d)

	_, err = Day("yesterday").DaysUntil("2026-10-14")
	assert.Error(t, err)
}
