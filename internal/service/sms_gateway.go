package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/homeserve/otpauth/internal/config"
	"github.com/sirupsen/logrus"
)

// SMSResult is the only shape callers see, whatever dialect the provider spoke.
type SMSResult struct {
	Success   bool
	Simulated bool
	Message   string
	Error     string
}

// SMSSender delivers a one-time code to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, code string) SMSResult
}

// SMSGateway talks to an HTTP SMS provider. Without an API key every send is
// simulated. Outside production a failed provider call is also reported as a
// simulated success.
type SMSGateway struct {
	apiKey     string
	apiURL     string
	production bool
	client     *http.Client
	logger     *logrus.Logger
}

func NewSMSGateway(cfg *config.SMSConfig, production bool, logger *logrus.Logger) *SMSGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SMSGateway{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		production: production,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// IsLive reports whether a provider credential is configured.
func (g *SMSGateway) IsLive() bool {
	return g.apiKey != ""
}

type smsRequest struct {
	Route           string `json:"route"`
	VariablesValues string `json:"variables_values"`
	Numbers         string `json:"numbers"`
}

// Send makes exactly one provider call. It never retries.
func (g *SMSGateway) Send(ctx context.Context, phone, code string) SMSResult {
	if !g.IsLive() {
		g.logger.WithFields(logrus.Fields{
			"phone": phone,
			"otp":   code,
		}).Info("SMS provider not configured, simulating OTP send")
		return SMSResult{Success: true, Simulated: true, Message: "OTP sent (simulated)"}
	}

	ok, detail, err := g.call(ctx, phone, code)
	if err == nil && ok {
		return SMSResult{Success: true, Message: detail}
	}

	logEntry := g.logger.WithField("phone", phone)
	if err != nil {
		logEntry = logEntry.WithError(err)
		detail = err.Error()
	}
	if detail == "" {
		detail = "SMS provider reported failure"
	}

	if !g.production {
		logEntry.WithField("otp", code).Warn("SMS provider failed, falling back to simulated send")
		return SMSResult{Success: true, Simulated: true, Message: "OTP sent (simulated fallback)"}
	}

	logEntry.WithField("detail", detail).Error("SMS provider rejected OTP send")
	return SMSResult{Success: false, Error: detail}
}

// call returns the provider's application-level verdict, or an error for
// transport failures and non-2xx statuses.
func (g *SMSGateway) call(ctx context.Context, phone, code string) (bool, string, error) {
	payload, err := json.Marshal(smsRequest{
		Route:           "otp",
		VariablesValues: code,
		Numbers:         phone,
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(payload))
	if err != nil {
		return false, "", fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("authorization", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("SMS provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, "", fmt.Errorf("failed to read SMS provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, "", fmt.Errorf("SMS provider returned status %d", resp.StatusCode)
	}

	ok, detail := parseProviderResponse(body)
	return ok, detail, nil
}

// parseProviderResponse understands JSON bodies flagged with "return" or
// "success", and plain text bodies.
func parseProviderResponse(body []byte) (bool, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		detail := providerMessage(fields["message"])

		for _, flag := range []string{"return", "success"} {
			raw, found := fields[flag]
			if !found {
				continue
			}
			var ok bool
			if err := json.Unmarshal(raw, &ok); err != nil {
				return false, "unrecognized " + flag + " flag in provider response"
			}
			if !ok && detail == "" {
				detail = fmt.Sprintf("provider reported failure (%s=false)", flag)
			}
			return ok, detail
		}
		return true, detail
	}

	text := strings.TrimSpace(string(body))
	lower := strings.ToLower(text)
	for _, marker := range []string{"error", "fail", "invalid"} {
		if strings.Contains(lower, marker) {
			return false, text
		}
	}
	return true, text
}

// providerMessage accepts either a string or a list of strings.
func providerMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}
