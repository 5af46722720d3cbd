package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/di"
	authinfra "github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/auth"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
)

const (
	errCodeBadRequest          = "BAD_REQUEST"
	errCodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	errCodeUnauthorized        = "AUTH_UNAUTHORIZED"
	errCodeNotFound            = "NOT_FOUND"
	errCodeInsufficientHistory = "INSUFFICIENT_HISTORY"
	errCodeNoDimensions        = "NO_REGIME_INPUT"
	errCodeInternal            = "INTERNAL_ERROR"
)

// Server 封裝 gin 路由與分析用例。
type Server struct {
	engine    *gin.Engine
	app       *di.App
	cfg       config.Config
	tokenSvc  *authinfra.JWTIssuer
	clients   *authinfra.ClientAuthenticator
	log       zerolog.Logger
	startedAt time.Time
}

// NewServer 建立 API 伺服器；未設定任何用戶端時載入開發用帳號。
func NewServer(cfg config.Config, app *di.App) *Server {
	gin.SetMode(gin.ReleaseMode)

	clients := cfg.Auth.Clients
	if len(clients) == 0 {
		seeded, err := devClients()
		if err != nil {
			app.Log.Error().Err(err).Msg("seed dev client failed")
		} else {
			app.Log.Warn().Str("client_id", devClientID).Msg("no auth clients configured, using dev client")
			clients = seeded
		}
	}

	s := &Server{
		engine:    gin.New(),
		app:       app,
		cfg:       cfg,
		tokenSvc:  authinfra.NewJWTIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		clients:   authinfra.NewClientAuthenticator(clients),
		log:       app.Log.With().Str("component", "http").Logger(),
		startedAt: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler 回傳路由處理器，供 HTTP server 掛載。
func (s *Server) Handler() *gin.Engine {
	return s.engine
}
