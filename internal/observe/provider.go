package observe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultInterval is how often a running session appends a snapshot.
const DefaultInterval = 30 * time.Second

const meterServiceName = "meddoc"

// ProviderConfig configures the process meter provider.
type ProviderConfig struct {
	// ServiceName defaults to "meddoc".
	ServiceName    string
	ServiceVersion string

	// Path is the JSONL file snapshots are appended to.
	Path string

	// Interval defaults to DefaultInterval. Shutdown always writes a final
	// snapshot.
	Interval time.Duration
}

// Provider owns the SDK meter provider registered as the global one.
type Provider struct {
	mp *sdkmetric.MeterProvider
}

// InitProvider builds an SDK meter provider whose periodic reader appends
// cumulative snapshots to cfg.Path, and registers it globally. Call Shutdown
// on exit to flush the final snapshot.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.Path == "" {
		return nil, errors.New("observe: metrics path is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = meterServiceName
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exp, err := newFileExporter(cfg.Path)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Interval))),
	)
	otel.SetMeterProvider(mp)
	return &Provider{mp: mp}, nil
}

// Shutdown exports a final snapshot and closes the file.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

type snapshot struct {
	Time     time.Time                 `json:"time"`
	Resource map[string]any            `json:"resource,omitempty"`
	Scopes   []metricdata.ScopeMetrics `json:"scope_metrics"`
}

// fileExporter appends one JSON line per collection.
type fileExporter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func newFileExporter(path string) (*fileExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("observe: create metrics dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("observe: open metrics file: %w", err)
	}
	return &fileExporter{f: f, enc: json.NewEncoder(f)}, nil
}

func (e *fileExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *fileExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *fileExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return errors.New("observe: exporter is shut down")
	}

	line := snapshot{Time: time.Now().UTC(), Scopes: rm.ScopeMetrics}
	if rm.Resource != nil {
		line.Resource = make(map[string]any, rm.Resource.Len())
		for _, kv := range rm.Resource.Attributes() {
			line.Resource[string(kv.Key)] = kv.Value.AsInterface()
		}
	}
	return e.enc.Encode(line)
}

func (e *fileExporter) ForceFlush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	return e.f.Sync()
}

func (e *fileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}
