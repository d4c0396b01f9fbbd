package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

func parseSnowflakeID(value string) (snowflake.ID, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}

// pathID parses a snowflake path parameter and aborts the request on failure.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, ok := parseSnowflakeID(c.Param(name))
	if !ok {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, newValidationError(field, "required", field+" is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, newValidationError(field, "invalid_amount", "amount must be a decimal string")
	}
	return amount, nil
}

func parseDate(field, value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, newValidationError(field, "required", field+" is required")
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return parsed, nil
	}
	return time.Time{}, newValidationError(field, "invalid_date", "expected YYYY-MM-DD or RFC3339")
}
