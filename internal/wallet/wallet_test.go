package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAddress = "0x52908400098527886e0f7030069857d2e4169ee7"

func TestNewInfoChecksumsAddress(t *testing.T) {
	info, err := NewInfo(sampleAddress, "base-sepolia")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", info.Address)
	assert.Equal(t, "0x529...69EE7", info.Short())
	assert.Equal(t, "base-sepolia", info.NetworkID)
}

func TestNewInfoEmptyAndInvalid(t *testing.T) {
	info, err := NewInfo("  ", "base-sepolia")
	require.NoError(t, err)
	assert.Empty(t, info.Address)
	assert.Empty(t, info.Short())

	_, err = NewInfo("0x1234", "base-sepolia")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestTruncateShortInput(t *testing.T) {
	assert.Equal(t, "0xabc", Truncate("0xabc"))
	assert.Equal(t, "0x1234567890", Truncate("0x1234567890"))
}

func TestFormatEther(t *testing.T) {
	oneAndHalf := new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))
	assert.Equal(t, "1.5000 ETH", FormatEther(oneAndHalf))
	assert.Equal(t, "0.0000 ETH", FormatEther(nil))
	assert.Equal(t, "0.0000 ETH", FormatEther(big.NewInt(0)))
}

type stubBackend struct {
	balance  *big.Int
	err      error
	failures int
	calls    int
	asked    common.Address
}

func (s *stubBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	s.calls++
	s.asked = account
	if s.calls <= s.failures {
		return nil, errors.New("temporary rpc failure")
	}
	return s.balance, s.err
}

func TestBalanceReader(t *testing.T) {
	info, err := NewInfo(sampleAddress, "base-sepolia")
	require.NoError(t, err)

	backend := &stubBackend{balance: big.NewInt(2e18)}
	r, err := NewBalanceReader(backend, info)
	require.NoError(t, err)
	defer r.Close()
	r.retry = &utils.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}

	got, err := r.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0000 ETH", got)
	assert.Equal(t, common.HexToAddress(sampleAddress), backend.asked)

	backend.calls, backend.failures = 0, 2
	got, err = r.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0000 ETH", got)
	assert.Equal(t, 3, backend.calls)

	backend.calls, backend.failures = 0, 0
	backend.err = errors.New("rpc down")
	_, err = r.Balance(context.Background())
	assert.ErrorContains(t, err, "rpc down")
	assert.Equal(t, 3, backend.calls)
}

func TestNewBalanceReaderRequiresAddress(t *testing.T) {
	_, err := NewBalanceReader(&stubBackend{}, Info{})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Dial(context.Background(), "", Info{Address: sampleAddress})
	assert.Error(t, err)
}
