package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rental-messenger/model"
)

const testKey = "secret"

func TestToken_Roundtrip(t *testing.T) {
	req := require.New(t)
	merchant := model.NewIdentity(model.KindMerchant, 42)

	token, err := GenerateToken(merchant, testKey, time.Hour)
	req.NoError(err)

	meta, err := CheckAndExtractTokenMetadata(token, testKey)
	req.NoError(err)
	req.Equal(merchant, meta.Identity())
	req.Greater(meta.Exp, time.Now().Unix())
}

func TestToken_Rejected(t *testing.T) {
	user := model.NewIdentity(model.KindUser, 1)

	t.Run("wrong key", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(user, testKey, time.Hour)
		req.NoError(err)

		_, err = CheckAndExtractTokenMetadata(token, "other")
		req.ErrorIs(err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(user, testKey, -time.Minute)
		req.NoError(err)

		_, err = Verifier(testKey)(token)
		req.ErrorIs(err, ErrInvalidToken)
	})

	t.Run("unknown kind", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(model.NewIdentity("admin", 1), testKey, time.Hour)
		req.NoError(err)

		_, err = CheckAndExtractTokenMetadata(token, testKey)
		req.ErrorIs(err, ErrInvalidToken)
	})
}
