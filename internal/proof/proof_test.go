package proof

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tollgate-ai/tollgate/internal/clock"
)

func TestProofRoundTrip(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	codec := NewCodec("secret", 24*time.Hour, clk)

	paymentID := snowflake.ID(1001)
	workspaceID := snowflake.ID(2002)

	token, err := codec.Mint(paymentID, workspaceID, "inv-1", clk.Now())
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, paymentID.String(), claims.PaymentID)
	assert.Equal(t, workspaceID.String(), claims.WorkspaceID)
	assert.Equal(t, "inv-1", claims.InvoiceID)
}

func TestProofExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	codec := NewCodec("secret", 24*time.Hour, clk)

	token, err := codec.Mint(snowflake.ID(1), snowflake.ID(2), "inv-2", clk.Now())
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	_, err = codec.Verify(token)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = codec.Verify(token)
	require.ErrorIs(t, err, ErrProofExpired)
}

func TestProofRejectsTamperAndWrongKey(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	codec := NewCodec("secret", 24*time.Hour, clk)

	token, err := codec.Mint(snowflake.ID(1), snowflake.ID(2), "inv-3", clk.Now())
	require.NoError(t, err)

	_, err = codec.Verify(token + "x")
	require.ErrorIs(t, err, ErrInvalidProof)

	other := NewCodec("different", 24*time.Hour, clk)
	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidProof)

	_, err = codec.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidProof)
}
