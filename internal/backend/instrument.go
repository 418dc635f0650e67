package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry carries the tracer and meter backends report to. Zero values
// fall back to the global providers.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter
}

func (t Telemetry) tracer() trace.Tracer {
	if t.Tracer != nil {
		return t.Tracer
	}
	return otel.Tracer("interviewcoach/backend")
}

func (t Telemetry) meter() metric.Meter {
	if t.Meter != nil {
		return t.Meter
	}
	return otel.Meter("interviewcoach/backend")
}

// observe wraps one backend call in a span and records its duration
func (t Telemetry) observe(ctx context.Context, backend, model string, call func(ctx context.Context) (Response, error)) (Response, error) {
	ctx, span := t.tracer().Start(ctx, backend+"_api_call",
		trace.WithAttributes(attribute.String("backend", backend), attribute.String("model", model)))
	defer span.End()

	start := time.Now()
	resp, err := call(ctx)

	histogram, herr := t.meter().Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if herr == nil {
		histogram.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.String("backend", backend)))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	t.recordUsage(ctx, backend, resp.Usage)
	return resp, nil
}

// recordUsage records token usage counters reported by a backend
func (t Telemetry) recordUsage(ctx context.Context, backend string, usage map[string]float64) {
	for key, value := range usage {
		counter, err := t.meter().Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			continue
		}
		counter.Add(ctx, int64(value), metric.WithAttributes(attribute.String("backend", backend)))
	}
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return httpError(backend, resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// numericUsage keeps the numeric entries of a decoded usage object
func numericUsage(usage map[string]interface{}) map[string]float64 {
	if usage == nil {
		return nil
	}
	out := make(map[string]float64, len(usage))
	for k, v := range usage {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}
