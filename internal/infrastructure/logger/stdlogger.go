package logger

import (
	"io"
	"log"
	"os"
)

// StdLogger логгер на основе стандартного log пакета
type StdLogger struct {
	out          *log.Logger
	debugEnabled bool
}

// NewStdLogger создает логгер, пишущий в stderr
func NewStdLogger(debugEnabled bool) *StdLogger {
	return NewWriterLogger(os.Stderr, "microscope ", debugEnabled)
}

// NewWriterLogger создает логгер с заданным выводом и префиксом
func NewWriterLogger(w io.Writer, prefix string, debugEnabled bool) *StdLogger {
	return &StdLogger{
		out:          log.New(w, prefix, log.LstdFlags|log.Lmsgprefix),
		debugEnabled: debugEnabled,
	}
}

// Info логирует информационное сообщение
func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.out.Printf(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.out.Printf("ОШИБКА: "+msg, args...)
}

// Debug логирует отладочное сообщение
func (l *StdLogger) Debug(msg string, args ...interface{}) {
	if l.debugEnabled {
		l.out.Printf("DEBUG: "+msg, args...)
	}
}

// SetDebug включает или выключает отладочные сообщения
func (l *StdLogger) SetDebug(enabled bool) {
	l.debugEnabled = enabled
}
