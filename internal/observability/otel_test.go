package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messages-api/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabled(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetup_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.OTELConfig{Enabled: false}, Info{Version: "v0"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("disabled setup must not replace the tracer provider")
	}
}

func TestSetup_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)

		cfg := enabled("svc")
		cfg.Insecure = insecure
		shutdown, err := Setup(context.Background(), cfg, Info{Version: "v1.2.3", Backend: "sqlite"})
		if err != nil {
			t.Fatalf("insecure=%v: unexpected err: %v", insecure, err)
		}

		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected *sdktrace.TracerProvider")
		}

		carrier := propagation.MapCarrier{}
		ctx, span := otel.Tracer("test").Start(context.Background(), "span")
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if carrier.Get("traceparent") == "" {
			t.Fatalf("traceparent not injected")
		}

		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestSetup_ResourceCarriesBackend(t *testing.T) {
	res, err := newResource(context.Background(), "svc", Info{Version: "v1", Backend: "postgres"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	v, ok := res.Set().Value(attribute.Key("store.backend"))
	if !ok || v.AsString() != "postgres" {
		t.Fatalf("store.backend attribute missing: %v", res.Attributes())
	}

	res, err = newResource(context.Background(), "svc", Info{Version: "v1"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if _, ok := res.Set().Value(attribute.Key("store.backend")); ok {
		t.Fatalf("empty backend must not be recorded")
	}
}

func TestSetup_ExporterError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)
	orig := newExporter
	t.Cleanup(func() { newExporter = orig })
	newExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom-exporter")
	}

	prevTP := otel.GetTracerProvider()
	if _, err := Setup(context.Background(), enabled("svc"), Info{}); err == nil {
		t.Fatalf("expected error")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider changed on failure")
	}
}

func TestSetup_ResourceError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)
	orig := newResource
	t.Cleanup(func() { newResource = orig })
	newResource = func(context.Context, string, Info) (*resource.Resource, error) {
		return nil, errors.New("boom-resource")
	}

	prevProp := otel.GetTextMapPropagator()
	if _, err := Setup(context.Background(), enabled("svc"), Info{}); err == nil {
		t.Fatalf("expected error")
	}
	if otel.GetTextMapPropagator() != prevProp {
		t.Fatalf("propagator changed on failure")
	}
}

func TestClampRatio(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 3: 1}
	for in, want := range cases {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestTraceGORM_RegistersPlugin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := TraceGORM(db); err != nil {
		t.Fatalf("TraceGORM: %v", err)
	}
	// registering twice is rejected by gorm
	if err := TraceGORM(db); err == nil {
		t.Fatalf("expected duplicate plugin error")
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("traced query failed: %v", err)
	}
}
