package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/diwise/bubble-client/pkg/bubble/cache"
	"github.com/diwise/bubble-client/pkg/bubble/client"
	"github.com/diwise/bubble-client/pkg/bubble/objects"
	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bubble-export/exporter")

// Exporter writes the configured object types as newline delimited json,
// one object per line, with references resolved.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) (int, error)
}

type Record struct {
	Type   string       `json:"type"`
	Object types.Entity `json:"object"`
}

func WithCache(c *cache.Cache) func(*exporter) {
	return func(e *exporter) {
		e.cache = c
	}
}

func New(c client.Client, cfg Config, options ...func(*exporter)) Exporter {
	e := &exporter{
		client: c,
		cfg:    cfg,
		types:  map[string]*objects.Type{},
	}

	for _, option := range options {
		option(e)
	}

	return e
}

type exporter struct {
	client client.Client
	cfg    Config
	cache  *cache.Cache
	types  map[string]*objects.Type
}

func (e *exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	enc := json.NewEncoder(w)
	total := 0

	for _, export := range e.cfg.Exports {
		count, err := e.export(ctx, export, enc)
		total += count

		if err != nil {
			return total, fmt.Errorf("failed to export %s: %w", export.Type, err)
		}
	}

	return total, nil
}

func (e *exporter) export(ctx context.Context, export ExportConfig, enc *json.Encoder) (count int, err error) {
	ctx, span := tracer.Start(ctx, "export-type",
		trace.WithAttributes(attribute.String("object-type", export.Type)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	params := export.Params()
	log.Debug("exporting objects", "type", export.Type, "constraints", len(params.Constraints()), "joins", len(export.Joins))

	cursor := e.typeOf(export.Type).Get(params)

	for _, join := range export.Joins {
		target := objects.OnType(e.typeOf(join.Type))
		if join.Scan {
			target = objects.OnCursor(e.typeOf(join.Type).Get(objects.NewParams()))
		}

		cursor.Join(join.Field, target)
	}

	for obj, nextErr := range cursor.All(ctx) {
		if nextErr != nil {
			err = nextErr
			return count, err
		}

		for _, field := range export.Omit {
			obj.Remove(field)
		}

		if err = enc.Encode(Record{Type: export.Type, Object: obj}); err != nil {
			return count, err
		}

		count++
	}

	log.Info("export completed", "type", export.Type, "count", count)

	return count, nil
}

func (e *exporter) typeOf(name string) *objects.Type {
	if t, ok := e.types[name]; ok {
		return t
	}

	options := []objects.TypeOption{}
	if e.cache != nil {
		options = append(options, objects.WithCache(e.cache))
	}

	t := objects.NewType(e.client, name, options...)
	e.types[name] = t

	return t
}
