// Package net reports committed ledger events to an optional webhook, so
// downstream trading or monitoring systems can follow the chain without
// polling.
package net

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"eco-ledger/config"
)

var client = resty.New().SetTimeout(10 * time.Second)

var rootConfig *config.NetConfig

func Init(cfg *config.NetConfig) {
	rootConfig = cfg
}

// ReportLedgerEvent posts an event to the configured notifier webhook.
// Failures are logged, never surfaced: event delivery is best effort and
// does not participate in commit atomicity.
func ReportLedgerEvent(event string, payload any) {
	if rootConfig == nil || len(rootConfig.NotifierWebhook) == 0 {
		return
	}

	body := map[string]any{
		"event":     event,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, err := client.R().SetBody(body).Post(rootConfig.NotifierWebhook)
	if err != nil {
		zap.S().Warnf("Report ledger event error: [%s]", err.Error())
	}
}
