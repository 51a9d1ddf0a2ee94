package streaming

import (
	"context"

	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/codec"
)

// FilePublisher дописывает события в CBOR журнал на диске
type FilePublisher struct {
	writer *codec.LogWriter
}

// NewFilePublisher открывает журнал path на дозапись
func NewFilePublisher(path string) (*FilePublisher, error) {
	writer, err := codec.CreateLog(path)
	if err != nil {
		return nil, err
	}
	return &FilePublisher{writer: writer}, nil
}

// Publish дописывает событие
func (p *FilePublisher) Publish(_ context.Context, event domain.DetectionEvent) error {
	return p.writer.Write(event)
}

// Close закрывает журнал
func (p *FilePublisher) Close() error {
	return p.writer.Close()
}
