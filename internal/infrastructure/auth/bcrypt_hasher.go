package authinfra

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
)

// ErrInvalidCredentials 表示用戶端不存在或密鑰不符。
var ErrInvalidCredentials = errors.New("invalid client credentials")

// BcryptHasher 使用 bcrypt 檢查密鑰。
type BcryptHasher struct{}

func (BcryptHasher) Compare(hashed, plain string) bool {
	if hashed == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func (BcryptHasher) Hash(plain string) (string, error) {
	return HashSecret(plain)
}

// HashSecret 供 seed 與組態產生 bcrypt 雜湊。
func HashSecret(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ClientAuthenticator 依組態中的用戶端清單驗證 client credentials。
type ClientAuthenticator struct {
	hashes map[string]string
	hasher BcryptHasher
}

// NewClientAuthenticator 建立驗證器；重複的 id 以後者為準。
func NewClientAuthenticator(clients []config.ClientConfig) *ClientAuthenticator {
	hashes := make(map[string]string, len(clients))
	for _, c := range clients {
		hashes[c.ID] = c.SecretHash
	}
	return &ClientAuthenticator{hashes: hashes}
}

// Authenticate 驗證 id 與密鑰；失敗一律回傳 ErrInvalidCredentials。
func (a *ClientAuthenticator) Authenticate(clientID, secret string) error {
	hashed, ok := a.hashes[clientID]
	if !ok || !a.hasher.Compare(hashed, secret) {
		return ErrInvalidCredentials
	}
	return nil
}

// Len 回傳已設定的用戶端數量。
func (a *ClientAuthenticator) Len() int { return len(a.hashes) }
