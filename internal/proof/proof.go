package proof

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tollgate-ai/tollgate/internal/clock"
)

var (
	ErrInvalidProof = errors.New("invalid_proof")
	ErrProofExpired = errors.New("proof_expired")
)

// Claims is the payload of a payment proof token. The provider presents it
// back to the gateway to verify that settlement occurred.
type Claims struct {
	PaymentID   string `json:"pid"`
	InvoiceID   string `json:"inv"`
	WorkspaceID string `json:"wid"`
	jwt.RegisteredClaims
}

// Codec mints and verifies HS256 proof tokens. A proof is valid for a fixed
// window after payment completion; expiry is checked against the injected
// clock so it can be tested deterministically.
type Codec struct {
	secret   []byte
	validity time.Duration
	clock    clock.Clock
}

func NewCodec(secret string, validity time.Duration, clk clock.Clock) *Codec {
	return &Codec{
		secret:   []byte(secret),
		validity: validity,
		clock:    clk,
	}
}

func (c *Codec) Mint(paymentID, workspaceID snowflake.ID, invoiceID string, completedAt time.Time) (string, error) {
	claims := Claims{
		PaymentID:   paymentID.String(),
		InvoiceID:   invoiceID,
		WorkspaceID: workspaceID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(completedAt),
			ExpiresAt: jwt.NewNumericDate(completedAt.Add(c.validity)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Codec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidProof
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.clock.Now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrProofExpired
		}
		return nil, ErrInvalidProof
	}
	if !parsed.Valid || claims.PaymentID == "" || claims.InvoiceID == "" {
		return nil, ErrInvalidProof
	}
	return claims, nil
}
