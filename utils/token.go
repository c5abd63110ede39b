package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rental-messenger/model"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	Kind model.IdentityKind
	Id   int64
	Exp  int64
}

func (t TokenMetadata) Identity() model.Identity {
	return model.NewIdentity(t.Kind, t.Id)
}

// GenerateToken signs an access token for identity.
func GenerateToken(identity model.Identity, key string, expire time.Duration) (string, error) {
	claims := jwt.MapClaims{}

	claims["kind"] = string(identity.Kind)
	claims["id"] = fmt.Sprint(identity.ID)
	claims["exp"] = time.Now().Add(expire).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	t, err := token.SignedString([]byte(key))
	if err != nil {
		return "", err
	}

	return t, nil
}

func CheckAndExtractTokenMetadata(token string, key string) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}

	identity, err := ClaimsIdentity(claims)
	if err != nil {
		return nil, err
	}
	exp, _ := claims["exp"].(float64)

	return &TokenMetadata{
		Kind: identity.Kind,
		Id:   identity.ID,
		Exp:  int64(exp),
	}, nil
}

// ClaimsIdentity reads the participant carried by verified claims.
func ClaimsIdentity(claims jwt.MapClaims) (model.Identity, error) {
	kind, _ := claims["kind"].(string)
	id, _ := claims["id"].(string)
	identity, err := model.ParseIdentity(kind, id)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return identity, nil
}

// Verifier returns a token check bound to key.
func Verifier(key string) func(token string) (model.Identity, error) {
	return func(token string) (model.Identity, error) {
		meta, err := CheckAndExtractTokenMetadata(token, key)
		if err != nil {
			return model.Identity{}, err
		}
		return meta.Identity(), nil
	}
}
