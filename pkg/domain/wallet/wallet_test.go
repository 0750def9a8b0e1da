package wallet_test

import (
	"strings"
	"testing"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Parallel()

	t.Run("valid client wallet", func(t *testing.T) {
		t.Parallel()
		w, err := wallet.New().
			WithName("  alice  ").
			WithKind(wallet.KindClient).
			WithCurrency(money.USDT).
			Build()
		require.NoError(t, err)
		assert.Equal(t, "alice", w.Name)
		assert.Equal(t, "alice", w.Owner, "owner defaults to the name")
		assert.True(t, w.Active)
		assert.False(t, w.CanEscrow())
	})

	tests := []struct {
		name    string
		builder *wallet.Builder
		wantErr error
	}{
		{"empty name", wallet.New().WithKind(wallet.KindTeam), domain.ErrValidation},
		{"long name", wallet.New().WithName(strings.Repeat("x", 65)).WithKind(wallet.KindTeam), domain.ErrValidation},
		{"reserved name", wallet.New().WithName("System").WithKind(wallet.KindTeam), domain.ErrDuplicateName},
		{"bad kind", wallet.New().WithName("w").WithKind("vendor"), domain.ErrValidation},
		{"bad currency", wallet.New().WithName("w").WithKind(wallet.KindTeam).WithCurrency("us"), domain.ErrValidation},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSystemWallet(t *testing.T) {
	t.Parallel()
	sys := wallet.System(money.USDT)
	assert.True(t, wallet.IsSystem(sys.Name))
	assert.True(t, sys.AcceptsCurrency(money.EUR))

	team := &wallet.Wallet{Name: "team", Kind: wallet.KindTeam, Currency: money.USDT}
	assert.True(t, team.AcceptsCurrency(money.USDT))
	assert.False(t, team.AcceptsCurrency(money.EUR))
	assert.True(t, team.CanEscrow())
}
