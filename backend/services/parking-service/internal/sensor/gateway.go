package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const maxPayloadBytes = 64 * 1024

// Binding ties a slot name to the key the device reports it under.
type Binding struct {
	Slot string
	Key  string
}

// FailureRecorder is notified every time a poll falls back to all-free.
type FailureRecorder interface {
	SensorFailure()
}

// Gateway polls the occupancy device over HTTP.
type Gateway struct {
	url      string
	bindings []Binding
	client   *http.Client
	timeout  time.Duration
	failures FailureRecorder
	logger   *zap.Logger

	mu        sync.Mutex
	reachable bool
}

// NewGateway builds a gateway for baseURL+statusPath. An empty baseURL disables polling and
// every observation reports all slots free.
func NewGateway(baseURL, statusPath string, bindings []Binding, timeout time.Duration, failures FailureRecorder, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = time.Second
	}
	url := ""
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		if statusPath != "" && !strings.HasPrefix(statusPath, "/") {
			statusPath = "/" + statusPath
		}
		url = base + statusPath
	}
	return &Gateway{
		url:      url,
		bindings: bindings,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		failures: failures,
		logger:   logger,
		// assume reachable so the first failure is logged
		reachable: true,
	}
}

// Slots returns bound slot names in configured order.
func (g *Gateway) Slots() []string {
	names := make([]string, len(g.bindings))
	for i, b := range g.bindings {
		names[i] = b.Slot
	}
	return names
}

// Observe returns the occupancy of every bound slot. It never fails: any transport or decode
// problem yields all slots free.
func (g *Gateway) Observe(ctx context.Context) map[string]bool {
	ctx, span := otel.Tracer("smartparking/sensor").Start(ctx, "sensor.Observe")
	defer span.End()

	result := make(map[string]bool, len(g.bindings))
	for _, b := range g.bindings {
		result[b.Slot] = false
	}

	if g.url == "" {
		return result
	}

	raw, err := g.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sensor unreachable")
		g.markDown(err)
		return result
	}
	g.markUp()

	for _, b := range g.bindings {
		result[b.Slot] = Normalize(raw[b.Key])
	}
	span.SetAttributes(attribute.Int("sensor.slots", len(result)))
	return result
}

func (g *Gateway) fetch(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sensor: unexpected status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("sensor: decode payload: %w", err)
	}
	if payload == nil {
		return nil, errors.New("sensor: empty payload")
	}
	return payload, nil
}

func (g *Gateway) markDown(err error) {
	if g.failures != nil {
		g.failures.SensorFailure()
	}
	g.mu.Lock()
	wasUp := g.reachable
	g.reachable = false
	g.mu.Unlock()

	if wasUp {
		g.logger.Warn("sensor device unreachable, reporting all slots free", zap.String("url", g.url), zap.Error(err))
		return
	}
	g.logger.Debug("sensor device still unreachable", zap.Error(err))
}

func (g *Gateway) markUp() {
	g.mu.Lock()
	wasDown := !g.reachable
	g.reachable = true
	g.mu.Unlock()

	if wasDown {
		g.logger.Info("sensor device reachable again", zap.String("url", g.url))
	}
}
