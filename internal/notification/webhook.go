// Package notification posts run outcomes to Discord-style webhooks so
// long batch jobs can be watched from a channel. Notifications are best
// effort and disabled when no webhook URL is configured.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lsrd-tools/spectral-indices/internal/properties"
)

type WebhookMessage struct {
	Embeds []WebhookEmbed `json:"embeds"`
}

type WebhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorGreen = 65280
	colorRed   = 16711680
)

// SendSuccess reports a completed scene. Returns nil without sending when
// no success webhook is configured.
func SendSuccess(sceneID, detail string) error {
	url := properties.SuccessWebhookURL()
	if url == "" {
		return nil
	}
	return post(url, WebhookMessage{
		Embeds: []WebhookEmbed{
			{
				Title:       "✅ Spectral indices complete",
				Description: fmt.Sprintf("Scene %s processed.\n\n%s", sceneID, detail),
				Color:       colorGreen,
			},
		},
	})
}

// SendFailure reports a failed scene. Returns nil without sending when no
// failure webhook is configured.
func SendFailure(sceneID, errorMessage string) error {
	url := properties.FailureWebhookURL()
	if url == "" {
		return nil
	}
	return post(url, WebhookMessage{
		Embeds: []WebhookEmbed{
			{
				Title:       "🚨 Spectral indices failed",
				Description: fmt.Sprintf("Scene %s aborted: %s", sceneID, errorMessage),
				Color:       colorRed,
			},
		},
	})
}

func post(url string, message WebhookMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send webhook notification, status code: %d", resp.StatusCode)
	}

	return nil
}
