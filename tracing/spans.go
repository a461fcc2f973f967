package tracing

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRequestID    = "document.request_id"
	AttrURL          = "document.url"
	AttrViewport     = "document.viewport"
	AttrNodeCount    = "dom.nodes"
	AttrBoxCount     = "layout.boxes"
	AttrCommandCount = "display.commands"
	AttrDiagnostics  = "markup.diagnostics"
	AttrFrameIndex   = "frame.index"
	AttrMessageType  = "ipc.message"
	AttrSchema       = "ipc.version"
	AttrSessionID    = "session.id"
	AttrState        = "scheduler.state"
)

// Span names.
const (
	SpanLoad     = "pipeline.load"
	SpanParse    = "pipeline.parse"
	SpanLayout   = "pipeline.layout"
	SpanPaint    = "pipeline.paint"
	SpanRelayout = "pipeline.relayout"
	SpanHandle   = "scheduler.handle"
	SpanSession  = "session."
)

// RecordError marks span failed with err; a nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
