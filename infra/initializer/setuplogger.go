package initializer

import (
	"io"
	"log/slog"

	"github.com/amirasaad/crossledger/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	level log.Level
	glyph string
	color lipgloss.AdaptiveColor
}

var levelStyles = []levelStyle{
	{log.DebugLevel, "🐛", lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}},
	{log.InfoLevel, "ℹ️", lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}},
	{log.WarnLevel, "⚠️", lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}},
	{log.ErrorLevel, "❌", lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}},
}

// ledger keys that get their own colour in text output
var highlightedKeys = []string{"error", "wallet", "cross_id", "transaction_id", "operator", "idempotency_key"}

func styles() *log.Styles {
	s := log.DefaultStyles()
	for _, ls := range levelStyles {
		s.Levels[ls.level] = lipgloss.NewStyle().
			SetString(ls.glyph).
			Bold(true).
			Padding(0, 1).
			Foreground(ls.color)
	}
	keyColor := levelStyles[0].color
	for _, k := range highlightedKeys {
		color := keyColor
		if k == "error" {
			color = levelStyles[3].color
		}
		s.Keys[k] = lipgloss.NewStyle().Foreground(color)
		s.Values[k] = lipgloss.NewStyle().Bold(true)
	}
	return s
}

// setupLogger installs a charmbracelet handler as the slog default.
// LOG_FORMAT picks json or text; anything else falls back to text.
func setupLogger(cfg *config.Log, out io.Writer) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text"}
	}
	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	if formatter == log.TextFormatter {
		logger.SetStyles(styles())
	}

	slogger := slog.New(logger)
	slog.SetDefault(slogger)
	return slogger
}
