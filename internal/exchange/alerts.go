package exchange

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "CRITICAL" // System-breaking errors requiring immediate attention
	AlertSeverityWarning  AlertSeverity = "WARNING"  // Important errors that should be investigated
	AlertSeverityInfo     AlertSeverity = "INFO"     // Informational alerts for tracking
)

// AlertCategory represents the category of an alert. Trimmed to what a
// single-strategy autonomous bot's exchange adapter can actually raise — the
// teacher's session/database/position categories belonged to its
// multi-session order-lifecycle model, which domain.ExchangePort's
// atomic-buy/atomic-sell contract has no equivalent of.
type AlertCategory string

const (
	AlertCategoryOrderExecution AlertCategory = "ORDER_EXECUTION"
	AlertCategoryExchange       AlertCategory = "EXCHANGE"
	AlertCategoryRateLimit      AlertCategory = "RATE_LIMIT"
	AlertCategoryNetwork        AlertCategory = "NETWORK"
)

// Alert represents an error alert with structured data
type Alert struct {
	Severity  AlertSeverity          `json:"severity"`
	Category  AlertCategory          `json:"category"`
	Message   string                 `json:"message"`
	Error     error                  `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// AlertManager handles error alerting and logging
type AlertManager struct {
	// Future: Prometheus counters, PagerDuty/Slack integrations.
}

// NewAlertManager creates a new alert manager
func NewAlertManager() *AlertManager {
	return &AlertManager{}
}

// SendAlert logs an alert at a severity-appropriate level.
func (am *AlertManager) SendAlert(ctx context.Context, alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	logEvent := log.With().
		Str("severity", string(alert.Severity)).
		Str("category", string(alert.Category)).
		Time("timestamp", alert.Timestamp)

	for key, value := range alert.Context {
		logEvent = logEvent.Interface(key, value)
	}
	if alert.Error != nil {
		logEvent = logEvent.Err(alert.Error)
	}

	logger := logEvent.Logger()

	switch alert.Severity {
	case AlertSeverityCritical:
		logger.Error().Msg(alert.Message)
	case AlertSeverityWarning:
		logger.Warn().Msg(alert.Message)
	case AlertSeverityInfo:
		logger.Info().Msg(alert.Message)
	default:
		logger.Error().Msg(alert.Message)
	}
}

// AlertOrderExecutionFailed creates an alert for a failed ExecuteBuy/ExecuteSell.
func AlertOrderExecutionFailed(err error, ticker, side string, amount float64) Alert {
	severity := AlertSeverityCritical
	if IsRetryable(err) {
		severity = AlertSeverityWarning
	}

	return Alert{
		Severity: severity,
		Category: AlertCategoryOrderExecution,
		Message:  "Failed to execute order",
		Error:    err,
		Context: map[string]interface{}{
			"ticker": ticker,
			"side":   side,
			"amount": amount,
		},
	}
}

// AlertRateLimitExceeded creates an alert for rate limit errors
func AlertRateLimitExceeded(err error, endpoint string) Alert {
	return Alert{
		Severity: AlertSeverityWarning,
		Category: AlertCategoryRateLimit,
		Message:  "Rate limit exceeded",
		Error:    err,
		Context:  map[string]interface{}{"endpoint": endpoint},
	}
}

// AlertNetworkError creates an alert for network errors
func AlertNetworkError(err error, operation string) Alert {
	return Alert{
		Severity: AlertSeverityWarning,
		Category: AlertCategoryNetwork,
		Message:  "Network error occurred",
		Error:    err,
		Context:  map[string]interface{}{"operation": operation},
	}
}

// AlertExchangeConnectionFailed creates an alert for exchange connection failures
func AlertExchangeConnectionFailed(err error, exchange string) Alert {
	return Alert{
		Severity: AlertSeverityCritical,
		Category: AlertCategoryExchange,
		Message:  "Failed to connect to exchange",
		Error:    err,
		Context:  map[string]interface{}{"exchange": exchange},
	}
}
