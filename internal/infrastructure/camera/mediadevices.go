package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
)

// MediaDevicesManager реализация CameraManager с использованием библиотеки mediadevices
type MediaDevicesManager struct {
	logger application.Logger
}

// NewMediaDevicesManager создает новый менеджер медиаустройств
func NewMediaDevicesManager(logger application.Logger) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger: logger,
	}
}

// ListDevices возвращает список доступных устройств захвата
func (m *MediaDevicesManager) ListDevices() ([]domain.VideoDevice, error) {
	devices := mediadevices.EnumerateDevices()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.VideoDevice{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  "videoinput",
		})
	}

	return result, nil
}

// OpenCamera открывает камеру. Сначала с желаемым разрешением, затем без ограничений формата.
func (m *MediaDevicesManager) OpenCamera(config domain.VideoConfig) (application.VideoTrack, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			// Задаем предпочтительные параметры, но не строгие
			if config.Width > 0 && config.Height > 0 {
				c.Width = prop.Int(int32(config.Width))
				c.Height = prop.Int(int32(config.Height))
			}
			if config.FrameRate > 0 {
				c.FrameRate = prop.Float(float32(config.FrameRate))
			}
			if config.DeviceID != "" {
				c.DeviceID = prop.String(config.DeviceID)
			}
		},
	}

	mediaStream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		m.logger.Error("Ошибка с исходными ограничениями: %v", err)

		m.logger.Info("Пробуем с минимальными ограничениями...")
		constraints = mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				if config.DeviceID != "" {
					c.DeviceID = prop.String(config.DeviceID)
				}
			},
		}

		mediaStream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, &domain.AcquisitionError{Device: config.DeviceID, Err: err}
		}
	}

	videoTracks := mediaStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		return nil, &domain.AcquisitionError{Device: config.DeviceID, Err: errors.New("видеотрек не обнаружен")}
	}

	videoTrack, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		videoTracks[0].Close()
		return nil, &domain.AcquisitionError{
			Device: config.DeviceID,
			Err:    fmt.Errorf("неожиданный тип трека %T", videoTracks[0]),
		}
	}

	return &MediaDevicesTrack{
		track:  videoTrack,
		reader: videoTrack.NewReader(false),
		logger: m.logger,
	}, nil
}

// MediaDevicesTrack обертка для видеотрека, выдающая декодированные кадры
type MediaDevicesTrack struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
	logger application.Logger

	closeOnce sync.Once
	closeErr  error
}

// ID возвращает идентификатор трека
func (t *MediaDevicesTrack) ID() string {
	return t.track.ID()
}

// CurrentFrame читает следующий кадр камеры. Кадр без размеров означает, что видео еще не готово.
func (t *MediaDevicesTrack) CurrentFrame() (*domain.Frame, error) {
	img, release, err := t.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("чтение кадра: %w", err)
	}
	if release != nil {
		defer release()
	}
	if img == nil || img.Bounds().Empty() {
		return nil, domain.ErrNotReady
	}
	return domain.FrameFromImage(img), nil
}

// Close закрывает трек и освобождает устройство. Повторный вызов безопасен.
func (t *MediaDevicesTrack) Close() error {
	t.closeOnce.Do(func() {
		t.logger.Debug("Закрытие трека %s", t.track.ID())
		t.closeErr = t.track.Close()
	})
	return t.closeErr
}
