package cross_test

import (
	"testing"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/cross"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lots = decimal.RequireFromString("2.0")

func validBuilder() *cross.Builder {
	return cross.New().
		WithName("EURUSD bonus run").
		WithPair("eurusd").
		WithVolume(lots).
		WithTeamWallet("team").
		WithLeg(cross.Leg{Side: cross.SideLong, Client: "A", Broker: "B1", Platform: "MT5", Account: "1001", Volume: lots}).
		WithLeg(cross.Leg{Side: cross.SideShort, Client: "B", Broker: "B2", Platform: "MT4", Account: "2002", Volume: lots})
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	c, err := validBuilder().Build(now)
	require.NoError(t, err)
	assert.Equal(t, cross.StateActive, c.State)
	assert.Equal(t, "EURUSD", c.Pair)
	assert.Equal(t, "A", c.Long.ClientWallet, "client wallet defaults to the client")
	assert.Equal(t, now, c.OpenedAt)
	assert.Equal(t, int64(1), c.Version)
	assert.True(t, c.ReferencesWallet("team"))
	assert.True(t, c.ReferencesWallet("B"))
	assert.False(t, c.ReferencesWallet("C"))
}

func TestBuilder_Invariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		builder func() *cross.Builder
		wantErr error
	}{
		{"same client", func() *cross.Builder {
			return validBuilder().WithLeg(cross.Leg{Side: cross.SideShort, Client: "a", Volume: lots})
		}, domain.ErrSameClientBothLegs},
		{"same client wallet", func() *cross.Builder {
			return validBuilder().WithLeg(cross.Leg{Side: cross.SideShort, Client: "Z", ClientWallet: "A", Volume: lots})
		}, domain.ErrSameClientBothLegs},
		{"missing short leg", func() *cross.Builder {
			return cross.New().WithName("x").WithPair("p").WithVolume(lots).WithTeamWallet("team").
				WithLeg(cross.Leg{Side: cross.SideLong, Client: "A", Volume: lots})
		}, domain.ErrInvalidLeg},
		{"zero leg volume", func() *cross.Builder {
			return validBuilder().WithLeg(cross.Leg{Side: cross.SideLong, Client: "A", Volume: decimal.Zero})
		}, domain.ErrInvalidLeg},
		{"no name", func() *cross.Builder { return validBuilder().WithName(" ") }, domain.ErrValidation},
		{"no volume", func() *cross.Builder { return validBuilder().WithVolume(decimal.Zero) }, domain.ErrValidation},
		{"no team wallet", func() *cross.Builder { return validBuilder().WithTeamWallet("") }, domain.ErrUnknownWallet},
		{"leg is team wallet", func() *cross.Builder {
			return validBuilder().WithLeg(cross.Leg{Side: cross.SideLong, Client: "team", Volume: lots})
		}, domain.ErrSelfTransfer},
		{"negative bonus", func() *cross.Builder {
			return validBuilder().WithBonus(cross.Bonus{Amount: decimal.RequireFromString("-5")})
		}, domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.builder().Build(time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCross_StateMachine(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	c, err := validBuilder().Build(at)
	require.NoError(t, err)

	require.NoError(t, c.Suspend(at, "ops", "broker maintenance"))
	assert.Equal(t, cross.StateSuspended, c.State)
	assert.Equal(t, int64(2), c.Version)
	assert.Contains(t, c.Note, "[2026-10-15T10:00:00Z ops] broker maintenance")

	err = c.Close(cross.Settlement{Winner: cross.SideLong}, at, "")
	assert.ErrorIs(t, err, domain.ErrNotActive, "suspended blocks closing")

	assert.ErrorIs(t, c.Suspend(at, "ops", ""), domain.ErrInvalidTransition)
	require.NoError(t, c.Resume(at, "ops", ""))
	assert.Equal(t, cross.StateActive, c.State)

	require.NoError(t, c.Close(cross.Settlement{Winner: cross.SideShort, ClosedBy: "ops"}, at, "done"))
	assert.Equal(t, cross.StateClosed, c.State)
	require.NotNil(t, c.ClosedAt)
	require.NotNil(t, c.Settlement)

	assert.ErrorIs(t, c.Close(cross.Settlement{}, at, ""), domain.ErrNotActive)
	assert.ErrorIs(t, c.Resume(at, "ops", ""), domain.ErrInvalidTransition)
}

func TestParseSide(t *testing.T) {
	t.Parallel()
	s, err := cross.ParseSide(" Short ")
	require.NoError(t, err)
	assert.Equal(t, cross.SideShort, s)
	assert.Equal(t, cross.SideLong, s.Opposite())

	_, err = cross.ParseSide("both")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
