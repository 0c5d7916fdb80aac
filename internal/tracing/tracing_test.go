package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("disabled provider: %v", err)
	}
	if p.IsEnabled() {
		t.Error("IsEnabled() = true for disabled config")
	}
	if p.Tracer("test") == nil {
		t.Error("disabled provider returned nil tracer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("shutdown of disabled provider: %v", err)
	}
}

func TestNewProvider_ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "missing service name",
			cfg:  Config{Enabled: true, SamplingRate: 1.0},
		},
		{
			name: "sampling rate below zero",
			cfg:  Config{Enabled: true, ServiceName: "expertrank-api", SamplingRate: -0.5},
		},
		{
			name: "sampling rate above one",
			cfg:  Config{Enabled: true, ServiceName: "expertrank-api", SamplingRate: 1.5},
		},
		{
			name: "unsupported exporter",
			cfg: Config{
				Enabled:      true,
				ServiceName:  "expertrank-api",
				SamplingRate: 1.0,
				ExporterType: "jaeger-thrift",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestNewProvider_OTLPHTTP(t *testing.T) {
	// exporter construction is lazy; no collector needs to be listening
	p, err := NewProvider(Config{
		Enabled:      true,
		ServiceName:  "expertrank-api",
		Environment:  "development",
		ExporterType: "otlp-http",
		OTLPEndpoint: "localhost:4318",
		SamplingRate: 0.5,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if !p.IsEnabled() {
		t.Error("IsEnabled() = false for enabled config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}
