package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}

	passStyle = lipgloss.NewStyle().Foreground(colorPass)
	warnStyle = lipgloss.NewStyle().Foreground(colorWarn)
	failStyle = lipgloss.NewStyle().Foreground(colorFail)
)

const (
	iconPass = "✓"
	iconWarn = "⚠"
	iconFail = "✗"
)

// StatusPrinter は1行ごとの処理結果をオペレーター向けに出力します。
// 成功と部分成功は out に、失敗は errOut に書き込みます
type StatusPrinter struct {
	out    io.Writer
	errOut io.Writer
}

// NewStatusPrinter は新しい StatusPrinter を作成します
func NewStatusPrinter(out, errOut io.Writer) *StatusPrinter {
	return &StatusPrinter{out: out, errOut: errOut}
}

// DefaultStatusPrinter は標準出力/標準エラーに書き込む StatusPrinter を返します
func DefaultStatusPrinter() *StatusPrinter {
	return NewStatusPrinter(os.Stdout, os.Stderr)
}

// Pass は成功行を出力します
func (p *StatusPrinter) Pass(format string, v ...interface{}) {
	fmt.Fprintln(p.out, passStyle.Render(iconPass+" "+fmt.Sprintf(format, v...)))
}

// Warn は部分成功 (作成済み・未クローズ) の行を出力します
func (p *StatusPrinter) Warn(format string, v ...interface{}) {
	fmt.Fprintln(p.out, warnStyle.Render(iconWarn+" "+fmt.Sprintf(format, v...)))
}

// Fail は失敗行を出力します
func (p *StatusPrinter) Fail(format string, v ...interface{}) {
	fmt.Fprintln(p.errOut, failStyle.Render(iconFail+" "+fmt.Sprintf(format, v...)))
}
