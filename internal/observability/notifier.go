package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhydlewis/omnifocus-to-kanban/pkg/models"
)

// Notifier announces completed sync runs to an external channel.
type Notifier interface {
	Notify(report *models.SyncReport) error
}

// webhookNotifier posts a run summary to a Slack-compatible webhook.
type webhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a Notifier that posts run summaries to the
// given webhook URL.
func NewWebhookNotifier(webhookURL string) Notifier {
	return &webhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends the report to the configured webhook. Runs that did
// nothing are not announced.
func (n *webhookNotifier) Notify(report *models.SyncReport) error {
	if report.Operations() == 0 && report.TasksClosed == 0 && len(report.Failures) == 0 {
		return nil
	}

	msg := n.buildMessage(report)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling webhook message: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *webhookNotifier) buildMessage(report *models.SyncReport) slackMessage {
	summary := fmt.Sprintf(
		"*%s* synced in %.1fs: %d closed, %d created, %d updated, %d sub-items",
		report.Board,
		report.Elapsed,
		report.TasksClosed,
		report.CardsCreated,
		report.CardsUpdated,
		report.SubItemsCreated,
	)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "OmniFocus Sync"},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: summary},
		},
	}

	if len(report.Failures) > 0 {
		text := fmt.Sprintf(":warning: %d failures\n_%s_",
			len(report.Failures),
			strings.Join(report.Failures, "_\n_"),
		)
		blocks = append(blocks, slackBlock{Type: "divider"})
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	return slackMessage{Blocks: blocks}
}
