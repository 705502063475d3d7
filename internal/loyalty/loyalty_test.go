package loyalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voalzira/internal/money"
)

func TestAddPointsExactlyOneHundred(t *testing.T) {
	c := NewCard()
	assert.True(t, c.AddPoints(100))
	assert.Equal(t, 1, c.Stamps())
	assert.Equal(t, int64(0), c.Points())
}

func TestAddPointsOneFifty(t *testing.T) {
	c := NewCard()
	assert.True(t, c.AddPoints(150))
	assert.Equal(t, 1, c.Stamps())
	assert.Equal(t, int64(50), c.Points())
}

func TestAddPointsAwardsOneStampPerCall(t *testing.T) {
	c := NewCard()
	c.AddPoints(250)
	assert.Equal(t, 1, c.Stamps())
	assert.Equal(t, int64(150), c.Points())
}

func TestAddPointsAccumulatesAcrossCalls(t *testing.T) {
	c := NewCard()
	assert.False(t, c.AddPoints(60))
	assert.False(t, c.AddPoints(39))
	assert.Equal(t, 0, c.Stamps())
	assert.True(t, c.AddPoints(1))
	assert.Equal(t, 1, c.Stamps())
	assert.Equal(t, int64(0), c.Points())
}

func TestAddPointsIgnoresNonPositive(t *testing.T) {
	c := NewCard()
	assert.False(t, c.AddPoints(0))
	assert.False(t, c.AddPoints(-5))
	assert.Equal(t, int64(0), c.Points())
}

func TestStampsCapAtTen(t *testing.T) {
	c := NewCard()
	for i := 0; i < MaxStamps; i++ {
		require.True(t, c.AddPoints(100))
	}
	assert.False(t, c.AddPoints(120))
	assert.Equal(t, MaxStamps, c.Stamps())
	assert.Equal(t, int64(20), c.Points())
}

func TestRedeem(t *testing.T) {
	c := NewCard()
	c.AddPoints(100)
	assert.ErrorIs(t, c.Redeem(), ErrNotEnoughStamps)
	assert.Equal(t, 1, c.Stamps())

	for c.Stamps() < MaxStamps {
		c.AddPoints(100)
	}
	require.NoError(t, c.Redeem())
	assert.Equal(t, 0, c.Stamps())
}

func TestPointsFor(t *testing.T) {
	assert.Equal(t, int64(21), PointsFor(2160, 1))
	assert.Equal(t, int64(43), PointsFor(2160, 2))
	assert.Equal(t, int64(10), PointsFor(2160, 0.5))
	assert.Equal(t, int64(0), PointsFor(money.Cents(99), 1))
	assert.Equal(t, int64(0), PointsFor(2160, 0))
}
