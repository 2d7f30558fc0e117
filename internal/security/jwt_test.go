package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenAuthenticator(t *testing.T) {
	auth := TokenAuthenticator{Secret: "s3cret"}

	token, err := GenerateAccess("s3cret", "buyer-1", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, auth.Authenticate("buyer-1", token))
	assert.ErrorIs(t, auth.Authenticate("seller-1", token), ErrSubjectDenied)
	assert.ErrorIs(t, auth.Authenticate("buyer-1", ""), ErrInvalidToken)

	forged, err := GenerateAccess("other", "buyer-1", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, auth.Authenticate("buyer-1", forged), ErrInvalidToken)

	expired, err := GenerateAccess("s3cret", "buyer-1", -time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, auth.Authenticate("buyer-1", expired), ErrInvalidToken)
}
