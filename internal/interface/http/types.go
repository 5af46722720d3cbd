package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
)

var validate = validator.New()

type tokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// AnalogParams 為單筆與批次相似日請求共用的參數。
type AnalogParams struct {
	AsOf        string              `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Preset      string              `json:"preset" default:"technical" validate:"oneof=price price_volume price_volume_valuation price_volume_valuation_flow technical"`
	Filters     *analysis.FilterSet `json:"filters"`
	Horizons    []int               `json:"horizons" validate:"omitempty,max=8,dive,gt=0,lte=250"`
	MinSamples  int                 `json:"min_samples" validate:"gte=0,lte=1000"`
	ApplyRegime bool                `json:"apply_regime"`
}

type analogRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	AnalogParams
}

type batchRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=50,dive,required"`
	AnalogParams
}

type regimeRequest struct {
	Symbol string             `json:"symbol" validate:"required_without=Inputs"`
	Market string             `json:"market" validate:"omitempty,oneof=CN HK US cn hk us"`
	AsOf   string             `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Inputs map[string]float64 `json:"inputs"`
}

type fieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// bindRequest 依序解析 JSON、套用預設值並驗證；失敗時已寫出 400 回應。
func bindRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "invalid body")
		return false
	}
	if err := defaults.Set(req); err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, err.Error())
		return false
	}
	if err := validate.StructCtx(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Success:   false,
			Error:     "validation failed",
			ErrorCode: errCodeBadRequest,
			Details:   fieldErrors(err),
		})
		return false
	}
	return true
}

func fieldErrors(err error) []fieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []fieldError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}
	out := make([]fieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fieldError{
			Field:   fe.Namespace(),
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}

func (p AnalogParams) toInput() (analysis.AnalogInput, error) {
	asOf, err := parseDate(p.AsOf)
	if err != nil {
		return analysis.AnalogInput{}, err
	}
	return analysis.AnalogInput{
		AsOf:        asOf,
		Preset:      p.Preset,
		Filters:     p.Filters,
		Horizons:    p.Horizons,
		MinSamples:  p.MinSamples,
		ApplyRegime: p.ApplyRegime,
	}, nil
}
