package authinfra

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 表示 token 無法驗證或已過期。
var ErrInvalidToken = errors.New("invalid token")

const issuerName = "stock-analysis"

// AccessToken 為簽發給用戶端的 bearer token。
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims 定義 access token 的 payload。
type Claims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

// JWTIssuer 以 HS256 簽發與驗證用戶端 access token。
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer 建立 JWT 簽發器。
func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue 為指定用戶端簽發 access token。
func (j *JWTIssuer) Issue(clientID string) (AccessToken, error) {
	if strings.TrimSpace(clientID) == "" {
		return AccessToken{}, errors.New("client id required")
	}
	now := j.now()
	exp := now.Add(j.ttl)
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, TokenType: "Bearer", ExpiresAt: exp}, nil
}

// ParseAccessToken 驗證並解析 access token。
func (j *JWTIssuer) ParseAccessToken(token string) (Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	},
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if !tkn.Valid || claims.ClientID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
