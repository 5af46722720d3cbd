package analysis

import (
	"errors"
	"fmt"
	"time"
)

// InsufficientHistoryError 表示回看視窗不足以計算某個被要求的維度。
type InsufficientHistoryError struct {
	Dimension Dimension
	Required  int
	Available int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d points, have %d", e.Dimension, e.Required, e.Available)
}

// NoMatchesFoundError 表示放寬一次後仍找不到任何歷史相似日。
type NoMatchesFoundError struct {
	Date    time.Time
	Relaxed bool
}

func (e *NoMatchesFoundError) Error() string {
	return fmt.Sprintf("no historical precedent for %s (relaxed=%t)", e.Date.Format("2006-01-02"), e.Relaxed)
}

// MissingDimensionWarning 為非致命警告：該維度被排除，只記錄不回傳錯誤。
type MissingDimensionWarning struct {
	Dimension string `json:"dimension"`
	Reason    string `json:"reason"`
}

func (w MissingDimensionWarning) String() string {
	return fmt.Sprintf("%s excluded: %s", w.Dimension, w.Reason)
}

// IsInsufficientHistory 檢查錯誤鏈中是否有 InsufficientHistoryError。
func IsInsufficientHistory(err error) bool {
	var e *InsufficientHistoryError
	return errors.As(err, &e)
}

// IsNoMatches 檢查錯誤鏈中是否有 NoMatchesFoundError。
func IsNoMatches(err error) bool {
	var e *NoMatchesFoundError
	return errors.As(err, &e)
}
