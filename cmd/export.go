package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ByLCY/tessera/engine"
	"github.com/ByLCY/tessera/layout"
	"github.com/ByLCY/tessera/renderer"
	canvasrenderer "github.com/ByLCY/tessera/renderer/canvas"
	"github.com/ByLCY/tessera/renderer/raster"
)

type exportOptions struct {
	out      string
	format   string
	debug    string
	dataPath string
	frame    uint64
}

func newExportCommand(a *app) *cobra.Command {
	var o exportOptions
	cmd := &cobra.Command{
		Use:   "export <document.html>",
		Short: "Render a document to PDF, SVG or raw pixels without IPC",
		Long: `export runs the pipeline directly. PDF and SVG output lay text out with the
vector font's own metrics; rgba output uses the bitmap rasterizer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.out == "" {
				o.out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "." + o.format
			}
			if err := a.export(cmd.Context(), args[0], o); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成 %s：%s\n", strings.ToUpper(o.format), o.out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output path (default: <document>.<format>)")
	cmd.Flags().StringVarP(&o.format, "format", "f", "pdf", "pdf, svg or rgba")
	cmd.Flags().StringVar(&o.debug, "debug", "", "write the layout box tree as JSON to this path")
	cmd.Flags().StringVar(&o.dataPath, "data", "", "JSON/YAML data bound into ${path} placeholders")
	cmd.Flags().Uint64Var(&o.frame, "frame", 0, "frame index painted by the overlay")
	return cmd
}

// export 串联解析、布局与渲染。
func (a *app) export(ctx context.Context, inputPath string, o exportOptions) error {
	html, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("无法打开文档 %s: %w", inputPath, err)
	}

	p, err := a.pipeline(o.dataPath)
	if err != nil {
		return err
	}
	var r renderer.Renderer
	switch o.format {
	case "pdf", "svg":
		cr := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
			Format: canvasrenderer.Format(o.format),
			Font:   a.cfg.Render.Font,
			Title:  filepath.Base(inputPath),
		})
		p.Typesetter = cr
		r = cr
	case "rgba":
		r = raster.Renderer{}
	default:
		return fmt.Errorf("未知输出格式 %q", o.format)
	}

	doc, err := p.Load(ctx, engine.LoadRequest{
		URL:      "file://" + inputPath,
		HTML:     html,
		Viewport: layout.Viewport{Width: int(a.cfg.Viewport.Width), Height: int(a.cfg.Viewport.Height)},
	})
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}
	for _, d := range doc.Diagnostics {
		a.log.Debug("diagnostic", "offset", d.Offset, "message", d.Message)
	}
	list := doc.List
	if o.frame != 0 {
		if list, err = p.Relayout(ctx, doc, o.frame); err != nil {
			return fmt.Errorf("布局计算失败: %w", err)
		}
	}

	if o.debug != "" {
		if err := writeDebug(doc.Tree, o.debug); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(o.out), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	data, err := r.Render(list)
	if err != nil {
		return fmt.Errorf("渲染失败: %w", err)
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	return nil
}

func writeDebug(tree *layout.Tree, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(tree, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
