package httpapi

import (
	authinfra "github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/auth"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
)

// 開發用預設用戶端，僅在組態未列出任何用戶端時使用。
const (
	devClientID     = "demo"
	devClientSecret = "demo-secret"
)

func devClients() ([]config.ClientConfig, error) {
	hash, err := authinfra.HashSecret(devClientSecret)
	if err != nil {
		return nil, err
	}
	return []config.ClientConfig{{ID: devClientID, SecretHash: hash}}, nil
}
