package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	regimeapp "github.com/FuNgaiKa/stock-analysis-sub000/internal/application/regime"
	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Details   any    `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, errorResponse{Success: false, Error: msg, ErrorCode: code})
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	writeError(c, status, code, msg)
	c.Abort()
}

func writeData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// classifyError 將用例錯誤對應到 HTTP 狀態碼與錯誤碼。
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		return http.StatusBadRequest, errCodeBadRequest
	case errors.Is(err, analysis.ErrSeriesNotFound), errors.Is(err, analysis.ErrDateNotFound):
		return http.StatusNotFound, errCodeNotFound
	case domain.IsInsufficientHistory(err):
		return http.StatusUnprocessableEntity, errCodeInsufficientHistory
	case errors.Is(err, regimeapp.ErrNoDimensions):
		return http.StatusUnprocessableEntity, errCodeNoDimensions
	}
	return http.StatusInternalServerError, errCodeInternal
}

func (s *Server) writeUseCaseError(c *gin.Context, err error) {
	status, code := classifyError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("analysis failed")
		msg = "internal error"
	}
	writeError(c, status, code, msg)
}
