// Package log carries a value Logger through contexts so every layer writes
// to whatever console the command configured.
package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/downstream-dev/downstream/internal/styles"
	"github.com/downstream-dev/downstream/internal/utils"
)

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelErr     Level = "error"
	LevelSuccess Level = "success"
)

// Levels accepted by the logLevel flag. Success and error lines always
// print, so only the first four are filterable.
var Levels = []string{string(LevelDebug), string(LevelInfo), string(LevelWarn), string(LevelErr)}

var severity = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelErr:   3,
}

type contextKey string

const loggerKey contextKey = "downstream-logger"

// With returns a context carrying l.
func With(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// From returns the logger carried by ctx, or a default one.
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return New()
}

// Logger is a value type; the With* builders return modified copies, so a
// derived logger never affects the one it came from.
type Logger struct {
	level           Level
	fields          []zapcore.Field
	interactiveOnly bool
	writer          io.Writer
}

func New() Logger {
	return Logger{level: LevelInfo, writer: os.Stderr}
}

func (l Logger) WithLevel(level Level) Logger {
	l.level = level
	return l
}

// WithFields attaches fields to every line the derived logger writes.
func (l Logger) WithFields(fields ...zapcore.Field) Logger {
	l.fields = append(l.fields[:len(l.fields):len(l.fields)], fields...)
	return l
}

// WithInteractiveOnly returns a logger that writes only when stdout is a
// terminal. Used for hints that would be noise in scripts and CI logs.
func (l Logger) WithInteractiveOnly() Logger {
	l.interactiveOnly = true
	return l
}

func (l Logger) WithWriter(w io.Writer) Logger {
	l.writer = w
	return l
}

func (l Logger) Debug(msg string, fields ...zapcore.Field) {
	l.log(LevelDebug, msg, fields)
}

func (l Logger) Debugf(format string, a ...any) {
	l.Debug(fmt.Sprintf(format, a...))
}

func (l Logger) Info(msg string, fields ...zapcore.Field) {
	l.log(LevelInfo, msg, fields)
}

func (l Logger) Infof(format string, a ...any) {
	l.Info(fmt.Sprintf(format, a...))
}

func (l Logger) Warn(msg string, fields ...zapcore.Field) {
	l.log(LevelWarn, msg, fields)
}

func (l Logger) Warnf(format string, a ...any) {
	l.Warn(fmt.Sprintf(format, a...))
}

func (l Logger) Error(msg string, fields ...zapcore.Field) {
	l.log(LevelErr, msg, fields)
}

func (l Logger) Errorf(format string, a ...any) {
	l.Error(fmt.Sprintf(format, a...))
}

func (l Logger) Success(msg string, fields ...zapcore.Field) {
	l.log(LevelSuccess, msg, fields)
}

func (l Logger) Successf(format string, a ...any) {
	l.Success(fmt.Sprintf(format, a...))
}

func (l Logger) PrintfStyled(style lipgloss.Style, format string, a ...any) {
	l.Println(style.Render(fmt.Sprintf(format, a...)))
}

func (l Logger) Println(s string) {
	l.Print(s + "\n")
}

func (l Logger) Print(s string) {
	if l.interactiveOnly && !utils.IsInteractive() {
		return
	}
	fmt.Fprint(l.writer, s)
}

func (l Logger) log(level Level, msg string, fields []zapcore.Field) {
	if s, gated := severity[level]; gated && s < severity[l.level] {
		return
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range append(l.fields, fields...) {
		// A bare error with no message becomes the message itself.
		if field.Type == zapcore.ErrorType && msg == "" {
			if err, ok := field.Interface.(error); ok {
				msg = err.Error()
				continue
			}
		}
		field.AddTo(enc)
	}

	line := render(level, msg)
	if len(enc.Fields) > 0 {
		if data, err := json.Marshal(enc.Fields); err == nil {
			line += "\t" + string(data)
		}
	}

	l.Println(line)
}

func render(level Level, msg string) string {
	switch level {
	case LevelDebug:
		return styles.Dimmed.Render(msg)
	case LevelWarn:
		return styles.Warning.Render(msg)
	case LevelErr:
		return styles.Error.Render(msg)
	case LevelSuccess:
		return styles.Success.Render(msg)
	default:
		return styles.Info.Render(msg)
	}
}
