package application

import (
	"context"

	"webcam-motion/internal/domain"
)

// CameraManager интерфейс для управления камерой
type CameraManager interface {
	// ListDevices возвращает список доступных устройств захвата
	ListDevices() ([]domain.VideoDevice, error)

	// OpenCamera открывает камеру с заданными параметрами
	OpenCamera(config domain.VideoConfig) (VideoTrack, error)
}

// FrameSource выдает текущий кадр. Пока кадров нет, возвращает domain.ErrNotReady.
type FrameSource interface {
	CurrentFrame() (*domain.Frame, error)
}

// VideoTrack открытый видеотрек камеры
type VideoTrack interface {
	FrameSource
	ID() string
	Close() error
}

// Clock ждет следующего такта отрисовки
type Clock interface {
	Next(ctx context.Context) error
}

// Surface оверлей, размер которого подгоняется под кадр
type Surface interface {
	Resize(width, height int)
}

// EventPublisher отправляет события обнаружения внешним потребителям
type EventPublisher interface {
	Publish(ctx context.Context, event domain.DetectionEvent) error
	Close() error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}
