// Package codec кодирует события обнаружения в CBOR. Журнал сессии хранится
// как последовательность CBOR значений, по одному на событие.
package codec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"webcam-motion/internal/domain"
)

var encMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Marshal кодирует одно событие
func Marshal(event domain.DetectionEvent) ([]byte, error) {
	data, err := encMode.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("кодирование события: %w", err)
	}
	return data, nil
}

// Unmarshal декодирует одно событие
func Unmarshal(data []byte) (domain.DetectionEvent, error) {
	var event domain.DetectionEvent
	if err := cbor.Unmarshal(data, &event); err != nil {
		return domain.DetectionEvent{}, fmt.Errorf("декодирование события: %w", err)
	}
	return event, nil
}

// LogWriter дописывает события в журнал
type LogWriter struct {
	mutex  sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
	count  int
}

// NewLogWriter пишет журнал в w
func NewLogWriter(w io.Writer) *LogWriter {
	lw := &LogWriter{enc: encMode.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		lw.closer = c
	}
	return lw
}

// CreateLog открывает файл журнала на дозапись
func CreateLog(path string) (*LogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("открытие журнала %s: %w", path, err)
	}
	return NewLogWriter(f), nil
}

// Write дописывает событие
func (w *LogWriter) Write(event domain.DetectionEvent) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err := w.enc.Encode(event); err != nil {
		return fmt.Errorf("запись события: %w", err)
	}
	w.count++
	return nil
}

// Count возвращает число записанных событий
func (w *LogWriter) Count() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.count
}

// Close закрывает файл журнала
func (w *LogWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// ReadLog читает все события журнала по порядку
func ReadLog(r io.Reader) ([]domain.DetectionEvent, error) {
	dec := cbor.NewDecoder(r)
	var events []domain.DetectionEvent
	for {
		var event domain.DetectionEvent
		err := dec.Decode(&event)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("событие %d: %w", len(events), err)
		}
		events = append(events, event)
	}
}

// ReadLogFile читает журнал из файла
func ReadLogFile(path string) ([]domain.DetectionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLog(f)
}

// WriteLogFile сохраняет журнал целиком в новый файл
func WriteLogFile(path string, events []domain.DetectionEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание журнала %s: %w", path, err)
	}
	w := NewLogWriter(f)
	for _, event := range events {
		if err := w.Write(event); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}
