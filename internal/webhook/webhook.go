// Package webhook posts new orders to an external integration endpoint.
// Delivery is best effort: one attempt, failures are only logged.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"voalzira/internal/models"
)

// Customer is the buyer block of an order notification.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
	Address  string `json:"address"`
}

// OrderPayload is the JSON body sent for every confirmed order.
type OrderPayload struct {
	OrderID    string             `json:"orderId"`
	Items      []models.OrderItem `json:"items"`
	Total      json.Number        `json:"total"`
	TotalCents int64              `json:"totalCents"`
	Customer   Customer           `json:"customer"`
	Store      models.Store       `json:"store"`
}

// Delivery records the outcome of one post.
type Delivery struct {
	OrderID    string    `json:"orderId"`
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier delivers order payloads asynchronously.
type Notifier struct {
	mu         sync.RWMutex
	url        string
	client     *http.Client
	logger     *zap.Logger
	wg         sync.WaitGroup
	deliveries []Delivery
}

// New returns a notifier posting to url. An empty url disables delivery.
func New(url string, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SetURL updates the delivery URL for subsequent orders.
func (n *Notifier) SetURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = url
}

// URL returns the current delivery URL.
func (n *Notifier) URL() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.url
}

// Fire posts p in the background and returns immediately.
func (n *Notifier) Fire(p OrderPayload) {
	url := n.URL()
	if url == "" {
		n.logger.Debug("no webhook URL configured, skipping delivery", zap.String("order_id", p.OrderID))
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(url, p)
	}()
}

// Wait blocks until every delivery started by Fire has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Deliveries returns the delivery records so far.
func (n *Notifier) Deliveries() []Delivery {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}

func (n *Notifier) deliver(url string, p OrderPayload) {
	d := Delivery{OrderID: p.OrderID, URL: url, Timestamp: time.Now()}
	status, err := n.post(url, p)
	d.StatusCode = status
	if err != nil {
		d.Error = err.Error()
		n.logger.Warn("webhook delivery failed",
			zap.String("order_id", p.OrderID), zap.String("url", url), zap.Int("status", status), zap.Error(err))
	} else {
		n.logger.Info("webhook delivered", zap.String("order_id", p.OrderID), zap.Int("status", status))
	}
	n.mu.Lock()
	n.deliveries = append(n.deliveries, d)
	n.mu.Unlock()
}

func (n *Notifier) post(url string, p OrderPayload) (int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
