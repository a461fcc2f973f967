// Package engine runs the document pipeline (markup → DOM → layout → display
// list) and the content-side scheduler that drives it from IPC messages.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ByLCY/tessera/binding"
	"github.com/ByLCY/tessera/display"
	"github.com/ByLCY/tessera/dom"
	"github.com/ByLCY/tessera/layout"
	"github.com/ByLCY/tessera/markup"
	"github.com/ByLCY/tessera/script"
	"github.com/ByLCY/tessera/tracing"
)

// Pipeline holds the collaborators of one content engine. The zero value
// is usable: monospace typesetting, no scripts, no data binding.
type Pipeline struct {
	Typesetter layout.Typesetter
	Scripts    script.Host
	// Data is bound into ${path} placeholders before layout.
	Data    any
	Overlay bool
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Document is the retained state of a successful load.
type Document struct {
	RequestID   uint64
	URL         string
	Title       string
	DOM         *dom.Document
	Viewport    layout.Viewport
	Tree        *layout.Tree
	List        *display.List
	Diagnostics []markup.Diagnostic
	// ScriptErr is the script host's answer; it never fails the load.
	ScriptErr error
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.Tracer != nil {
		return p.Tracer
	}
	return noop.NewTracerProvider().Tracer("noop")
}

// Load runs the whole pipeline for req. Markup errors are recovered and
// reported as diagnostics; only empty input fails (fault.ErrInvalidInput).
func (p *Pipeline) Load(ctx context.Context, req LoadRequest) (*Document, error) {
	ctx, span := p.tracer().Start(ctx, tracing.SpanLoad, trace.WithAttributes(
		attribute.Int64(tracing.AttrRequestID, int64(req.RequestID)),
		attribute.String(tracing.AttrURL, req.URL),
		attribute.String(tracing.AttrViewport, fmt.Sprintf("%dx%d", req.Viewport.Width, req.Viewport.Height)),
	))
	defer span.End()

	_, parseSpan := p.tracer().Start(ctx, tracing.SpanParse)
	tree, diags, err := dom.Parse(req.HTML)
	if err == nil {
		err = tree.Validate()
	}
	parseSpan.SetAttributes(attribute.Int(tracing.AttrDiagnostics, len(diags)))
	tracing.RecordError(parseSpan, err)
	parseSpan.End()
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("request %d: %w", req.RequestID, err)
	}
	if p.Data != nil {
		if n := binding.Apply(tree, p.Data); n > 0 {
			p.logger().Debug("bound placeholders", "request_id", req.RequestID, "count", n)
		}
	}

	doc := &Document{
		RequestID:   req.RequestID,
		URL:         req.URL,
		Title:       tree.Title(),
		DOM:         tree,
		Viewport:    req.Viewport,
		Diagnostics: diags,
	}
	if p.Scripts != nil {
		doc.ScriptErr = p.Scripts.Execute(tree.Scripts())
	}
	if err := p.render(ctx, doc, 0, true); err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("request %d: %w", req.RequestID, err)
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrNodeCount, tree.Len()),
		attribute.Int(tracing.AttrCommandCount, doc.List.Len()),
	)
	if len(doc.Diagnostics) > 0 {
		p.logger().Debug("markup diagnostics", "request_id", req.RequestID, "count", len(doc.Diagnostics))
	}
	return doc, nil
}

// Relayout re-runs layout and list generation on the retained DOM and
// returns the list for frame. doc is updated in place.
func (p *Pipeline) Relayout(ctx context.Context, doc *Document, frame uint64) (*display.List, error) {
	if doc == nil || doc.DOM == nil {
		return nil, errors.New("engine: relayout without a document")
	}
	ctx, span := p.tracer().Start(ctx, tracing.SpanRelayout, trace.WithAttributes(
		attribute.Int64(tracing.AttrFrameIndex, int64(frame)),
	))
	defer span.End()
	if err := p.render(ctx, doc, frame, false); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return doc.List, nil
}

func (p *Pipeline) render(ctx context.Context, doc *Document, frame uint64, keepDiagnostics bool) error {
	var diags []markup.Diagnostic
	_, layoutSpan := p.tracer().Start(ctx, tracing.SpanLayout)
	tree, err := layout.Build(doc.DOM, doc.Viewport, layout.BuildOptions{
		Typesetter:  p.Typesetter,
		Logger:      p.logger(),
		Diagnostics: &diags,
	})
	tracing.RecordError(layoutSpan, err)
	if err == nil {
		layoutSpan.SetAttributes(attribute.Int(tracing.AttrBoxCount, tree.Len()))
	}
	layoutSpan.End()
	if err != nil {
		return err
	}

	_, paintSpan := p.tracer().Start(ctx, tracing.SpanPaint)
	list := display.Build(tree, display.Options{Overlay: p.Overlay, Frame: frame})
	paintSpan.SetAttributes(attribute.Int(tracing.AttrCommandCount, list.Len()))
	paintSpan.End()

	doc.Tree = tree
	doc.List = list
	if keepDiagnostics {
		doc.Diagnostics = append(doc.Diagnostics, diags...)
	}
	return nil
}

// LoadRequest is the pipeline's view of ipc.LoadDocument.
type LoadRequest struct {
	RequestID uint64
	URL       string
	HTML      []byte
	Viewport  layout.Viewport
}
