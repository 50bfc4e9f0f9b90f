package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsRecording(t *testing.T) {
	cfg := &MetricsConfig{Enabled: true}
	metrics, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	if metrics == nil {
		t.Fatal("NewMetrics() returned nil for enabled config")
	}

	metrics.RecordAgentCall("assistant", "llm", 100*time.Millisecond)
	metrics.RecordAgentCall("assistant", "llm", 200*time.Millisecond)
	metrics.RecordAgentError("assistant", "llm", "tool_failure")
	metrics.RecordToolCall("search", 50*time.Millisecond)
	metrics.RecordToolError("search", "execution_error")
	metrics.RecordLLMCall("gpt-4o", "openai", 500*time.Millisecond)
	metrics.RecordLLMTokens("gpt-4o", "openai", 100, 50)
	metrics.RecordLLMError("gpt-4o", "openai", "rate_limit")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics handler status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNewMetrics_Disabled(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	if metrics != nil {
		t.Error("NewMetrics() should return nil when disabled")
	}

	// A nil *Metrics is safe to record against.
	metrics.RecordAgentCall("assistant", "llm", time.Millisecond)
	metrics.RecordToolCall("search", time.Millisecond)
}

func TestNoopMetrics(t *testing.T) {
	var r Recorder = NoopMetrics{}

	r.RecordAgentCall("assistant", "llm", 100*time.Millisecond)
	r.RecordToolCall("search", 50*time.Millisecond)
	r.RecordLLMCall("test-model", "unknown", 300*time.Millisecond)

	rec := httptest.NewRecorder()
	NoopMetrics{}.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("noop handler status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestNoopTracer(t *testing.T) {
	var tracer TraceRecorder = NoopTracer{}

	ctx := context.Background()
	_, span := tracer.StartAgentRun(ctx, "assistant", "llm", "sess-1", "user-1", "inv-1")
	span.End()

	_, span = tracer.StartLLMCall(ctx, "gpt-4o", 1024, 0.7, 0.9)
	tracer.AddLLMUsage(span, 100, 50)
	tracer.AddLLMFinishReason(span, "stop")
	span.End()

	_, span = tracer.StartToolExecution(ctx, "search", "searches things", "call-1")
	tracer.RecordError(span, nil)
	span.End()
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), &TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}
	if tracer != nil {
		t.Error("NewTracer() should return nil when disabled")
	}

	// A nil *Tracer still hands out usable no-op spans.
	_, span := tracer.Start(context.Background(), "span")
	span.End()
	tracer.RecordError(span, nil)
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("nil tracer Shutdown() error = %v", err)
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	cfg := &TracingConfig{Enabled: true}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaulted config should validate, got %v", err)
	}

	bad := &TracingConfig{Enabled: true, Exporter: "jaeger", Endpoint: "localhost:14268"}
	if err := bad.Validate(); err == nil {
		t.Error("unsupported exporter should fail validation")
	}
}
