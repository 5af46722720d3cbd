package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	regimeapp "github.com/FuNgaiKa/stock-analysis-sub000/internal/application/regime"
	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

type batchResult struct {
	Symbol    string                 `json:"symbol"`
	Status    string                 `json:"status"`
	Report    *analysis.AnalogReport `json:"report,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorCode string                 `json:"error_code,omitempty"`
}

func (s *Server) handleAnalog(c *gin.Context) {
	var req analogRequest
	if !bindRequest(c, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "invalid as_of")
		return
	}
	in.Symbol = normalizeSymbol(req.Symbol)

	report, err := s.app.Analog.Execute(c.Request.Context(), in)
	if err != nil {
		// 找不到相似日不是失敗，回傳 insufficient_data 報告
		if domain.IsNoMatches(err) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": report, "warning": err.Error()})
			return
		}
		s.writeUseCaseError(c, err)
		return
	}
	writeData(c, report)
}

func (s *Server) handleRegime(c *gin.Context) {
	var req regimeRequest
	if !bindRequest(c, &req) {
		return
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "invalid as_of")
		return
	}

	in := regimeapp.Input{Symbol: normalizeSymbol(req.Symbol), AsOf: asOf}
	if req.Inputs != nil {
		if req.Market == "" {
			writeError(c, http.StatusBadRequest, errCodeBadRequest, "market is required with inputs")
			return
		}
		market, err := marketdata.ParseMarket(req.Market)
		if err != nil {
			writeError(c, http.StatusBadRequest, errCodeBadRequest, err.Error())
			return
		}
		inputs, err := regimeapp.InputsFromMap(req.Inputs)
		if err != nil {
			writeError(c, http.StatusBadRequest, errCodeBadRequest, err.Error())
			return
		}
		in.Market = market
		in.Inputs = &inputs
	}

	report, err := s.app.Regime.Execute(c.Request.Context(), in)
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}
	writeData(c, report)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if !bindRequest(c, &req) {
		return
	}
	tmpl, err := req.toInput()
	if err != nil {
		writeError(c, http.StatusBadRequest, errCodeBadRequest, "invalid as_of")
		return
	}
	symbols := make([]string, len(req.Symbols))
	for i, sym := range req.Symbols {
		symbols[i] = normalizeSymbol(sym)
	}

	items, err := s.app.Batch.Execute(c.Request.Context(), symbols, tmpl)
	if err != nil {
		s.writeUseCaseError(c, err)
		return
	}

	results := make([]batchResult, len(items))
	failed := 0
	for i, item := range items {
		results[i] = batchResult{Symbol: item.Symbol, Status: item.Report.Status}
		switch {
		case item.Err == nil:
			results[i].Report = &items[i].Report
		case domain.IsNoMatches(item.Err):
			results[i].Report = &items[i].Report
			results[i].Error = item.Err.Error()
		default:
			_, code := classifyError(item.Err)
			results[i].Status = "error"
			results[i].Error = item.Err.Error()
			results[i].ErrorCode = code
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
		"total":   len(results),
		"failed":  failed,
	})
}
