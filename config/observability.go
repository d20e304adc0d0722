package config

import "time"

// OpsConfig configures operator-facing alerts, used for conditions that need
// manual remediation (e.g. a half-finished account deletion).
type OpsConfig struct {
	// WebhookURL receives operator alerts. Empty disables delivery;
	// alerts are still logged.
	WebhookURL string `env:"OPS_WEBHOOK_URL" envDefault:""`

	// Source labels alerts from this deployment.
	Source string `env:"OPS_ALERT_SOURCE" envDefault:"courselens"`

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration `env:"OPS_WEBHOOK_TIMEOUT" envDefault:"5s"`

	// RetryLimit is the number of retries after the first failed attempt.
	RetryLimit int `env:"OPS_WEBHOOK_RETRY_LIMIT" envDefault:"3"`
}

// Sanitize applies guardrails to operator alert configuration values.
func (o *OpsConfig) Sanitize() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RetryLimit < 0 {
		o.RetryLimit = 0
	}
}
