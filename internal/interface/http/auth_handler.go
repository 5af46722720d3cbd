package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleToken 以 client credentials 換取 access token。
func (s *Server) handleToken(c *gin.Context) {
	var req tokenRequest
	if !bindRequest(c, &req) {
		return
	}

	if err := s.clients.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		s.log.Warn().Str("client_id", req.ClientID).Str("ip", c.ClientIP()).Msg("token request rejected")
		writeError(c, http.StatusUnauthorized, errCodeInvalidCredentials, "invalid client credentials")
		return
	}

	tok, err := s.tokenSvc.Issue(req.ClientID)
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"access_token": tok.Token,
		"token_type":   tok.TokenType,
		"expires_at":   tok.ExpiresAt,
	})
}
