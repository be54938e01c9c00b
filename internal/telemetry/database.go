package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	spanInstanceKey  = "otel:span"
	startInstanceKey = "otel:start"

	maxStatementLen = 500
)

// GORMTracingPlugin returns a gorm plugin that opens a span around every
// content store statement. Store calls carry the request context, so the
// spans nest under the trending or feed operation that issued them.
func GORMTracingPlugin() gorm.Plugin {
	return &tracingPlugin{tracer: otel.Tracer("gorm")}
}

type tracingPlugin struct {
	tracer trace.Tracer
	system string
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	p.system = systemOf(db.Dialector.Name())

	cb := db.Callback()
	hooks := []struct {
		name   string
		before func(string) error
		after  func(string) error
	}{
		{"query", func(n string) error { return cb.Query().Before("gorm:query").Register(n, p.starter("SELECT")) },
			func(n string) error { return cb.Query().After("gorm:query").Register(n, p.finish) }},
		{"row", func(n string) error { return cb.Row().Before("gorm:row").Register(n, p.starter("SELECT")) },
			func(n string) error { return cb.Row().After("gorm:row").Register(n, p.finish) }},
		{"create", func(n string) error { return cb.Create().Before("gorm:create").Register(n, p.starter("INSERT")) },
			func(n string) error { return cb.Create().After("gorm:create").Register(n, p.finish) }},
		{"update", func(n string) error { return cb.Update().Before("gorm:update").Register(n, p.starter("UPDATE")) },
			func(n string) error { return cb.Update().After("gorm:update").Register(n, p.finish) }},
		{"delete", func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, p.starter("DELETE")) },
			func(n string) error { return cb.Delete().After("gorm:delete").Register(n, p.finish) }},
		{"raw", func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, p.starter("RAW")) },
			func(n string) error { return cb.Raw().After("gorm:raw").Register(n, p.finish) }},
	}

	for _, h := range hooks {
		if err := h.before("telemetry:before_" + h.name); err != nil {
			return fmt.Errorf("failed to register before_%s callback: %w", h.name, err)
		}
		if err := h.after("telemetry:after_" + h.name); err != nil {
			return fmt.Errorf("failed to register after_%s callback: %w", h.name, err)
		}
	}
	return nil
}

func systemOf(dialector string) string {
	switch dialector {
	case "postgres":
		return "postgresql"
	case "sqlite":
		return "sqlite"
	default:
		return dialector
	}
}

func (p *tracingPlugin) starter(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		_, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String(dbSystemKey, p.system),
				attribute.String(dbTableKey, table),
				attribute.String(dbOperationKey, operation),
			),
		)

		db.InstanceSet(spanInstanceKey, span)
		db.InstanceSet(startInstanceKey, time.Now())
	}
}

func (p *tracingPlugin) finish(db *gorm.DB) {
	raw, ok := db.InstanceGet(spanInstanceKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if startRaw, ok := db.InstanceGet(startInstanceKey); ok {
		if start, ok := startRaw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}

	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
