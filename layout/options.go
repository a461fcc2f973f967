package layout

import (
	"log/slog"

	"github.com/ByLCY/tessera/markup"
)

// BuildOptions 配置布局阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
	Logger     *slog.Logger
	// Diagnostics 不为空时接收样式解析中可恢复的问题。
	Diagnostics *[]markup.Diagnostic
}

// Typesetter 负责根据宽度约束将文本拆成可绘制的行。
// wrap 取 WrapNormal 或 WrapPre；返回的行只需填写 Content/Width/Height。
type Typesetter interface {
	LayoutLines(content string, width int, wrap string) ([]TextLine, error)
}

// 折行策略。
const (
	WrapNormal = "normal" // 折叠空白，优先在空白处断行，超长单词按宽度拆分
	WrapPre    = "pre"    // 保留空白与显式换行，不自动折行
)

func (o BuildOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
