package core

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/antic-browser/antic/log"
)

// Notifier reports session and probe outcomes to an external sink. Side
// effect only; callers never branch on the result of a notification.
type Notifier interface {
	NotifyInfo(title string, message string)
	NotifyError(title string, message string)
}

// LogNotifier writes notifications to the application log. Always available,
// used when no webhook is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyInfo(title string, message string) {
	log.Important("%s: %s", title, message)
}

func (n *LogNotifier) NotifyError(title string, message string) {
	log.Error("%s: %s", title, message)
}

type webhookPayload struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// WebhookNotifier POSTs notifications as JSON to a configured URL. Delivery
// failures are logged and dropped; a dead webhook must never affect a
// running session.
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	return &WebhookNotifier{
		url:    url,
		client: client,
	}
}

func (n *WebhookNotifier) NotifyInfo(title string, message string) {
	n.send("info", title, message)
}

func (n *WebhookNotifier) NotifyError(title string, message string) {
	n.send("error", title, message)
}

func (n *WebhookNotifier) send(level string, title string, message string) {
	payload := webhookPayload{
		Level:   level,
		Title:   title,
		Message: message,
		Time:    time.Now().Format(time.RFC3339),
	}
	resp, err := n.client.R().SetBody(payload).Post(n.url)
	if err != nil {
		log.Error("webhook: %v", err)
		return
	}
	if resp.StatusCode() >= 300 {
		log.Error("webhook: returned status %d", resp.StatusCode())
	}
}

// MultiNotifier fans one notification out to several sinks.
type MultiNotifier struct {
	sinks []Notifier
}

func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

func (n *MultiNotifier) NotifyInfo(title string, message string) {
	for _, s := range n.sinks {
		s.NotifyInfo(title, message)
	}
}

func (n *MultiNotifier) NotifyError(title string, message string) {
	for _, s := range n.sinks {
		s.NotifyError(title, message)
	}
}

// NotifierFromConfig builds the notification stack for the configured
// general settings.
func NotifierFromConfig(general *GeneralConfig) Notifier {
	if general.WebhookURL != "" {
		return NewMultiNotifier(NewLogNotifier(), NewWebhookNotifier(general.WebhookURL))
	}
	return NewLogNotifier()
}
