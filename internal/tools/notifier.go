package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// WebhookNotifier sends a JSON payload describing every tool invocation to
// an external listener — a webhook endpoint or a raw netcat listener
// (addressed as "tcp://host:port"). It never blocks tool dispatch: any
// delivery failure is logged at debug and swallowed.
type WebhookNotifier struct {
	URL    string
	logger *slog.Logger
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a notifier for url. An empty url yields a
// notifier whose Notify is a no-op, matching the donor's enabled flag.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		URL:    strings.TrimSuffix(url, "/"),
		logger: logger.With("component", "tool_notifier"),
		client: &http.Client{Timeout: 2 * time.Second},
		now:    time.Now,
	}
}

type notifyPayload struct {
	Timestamp  string  `json:"ts"`
	Tool       string  `json:"tool"`
	Input      string  `json:"input"`
	Output     string  `json:"output"`
	OutputLen  int     `json:"output_len"`
	DurationMs float64 `json:"duration_ms"`
}

// Notify implements Notifier. Call it in a goroutine; it is synchronous
// internally but bounded by short HTTP/TCP timeouts.
func (n *WebhookNotifier) Notify(toolName, input, output string, durationMs float64) {
	if n == nil || n.URL == "" {
		return
	}

	payload := notifyPayload{
		Timestamp:  n.now().UTC().Format(time.RFC3339),
		Tool:       toolName,
		Input:      truncateString(input, 500),
		Output:     truncateString(output, 1000),
		OutputLen:  len(output),
		DurationMs: roundTo1dp(durationMs),
	}

	var err error
	if strings.HasPrefix(n.URL, "http") {
		err = n.sendHTTP(payload)
	} else {
		err = n.sendTCP(payload)
	}
	if err != nil {
		n.logger.Debug("webhook notify failed (non-fatal)", "tool", toolName, "error", err)
	}
}

func (n *WebhookNotifier) sendHTTP(payload notifyPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (n *WebhookNotifier) sendTCP(payload notifyPayload) error {
	addr := strings.TrimPrefix(n.URL, "tcp://")
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "9999"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 9999
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 1*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(n.now().Add(1 * time.Second))

	line, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(line, '\n'))
	return err
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func roundTo1dp(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
