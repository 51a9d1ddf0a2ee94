package camera

import (
	"errors"
	"image"
	"sync"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
)

// SyntheticDeviceID идентификатор встроенного генератора кадров
const SyntheticDeviceID = "synthetic"

const (
	syntheticWidth  = 320
	syntheticHeight = 240
	syntheticBlock  = 24
	syntheticStep   = 4
	syntheticWarmup = 3
)

var errTrackClosed = errors.New("трек закрыт")

// SyntheticManager выдает кадры с движущимся светлым квадратом, камера не нужна
type SyntheticManager struct{}

// NewSyntheticManager создает генератор кадров
func NewSyntheticManager() *SyntheticManager {
	return &SyntheticManager{}
}

// ListDevices возвращает единственное синтетическое устройство
func (m *SyntheticManager) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: SyntheticDeviceID, Label: "Синтетический источник", Kind: "videoinput"}}, nil
}

// OpenCamera открывает синтетический трек
func (m *SyntheticManager) OpenCamera(config domain.VideoConfig) (application.VideoTrack, error) {
	width, height := config.Width, config.Height
	if width <= 0 || height <= 0 {
		width, height = syntheticWidth, syntheticHeight
	}
	return &SyntheticTrack{width: width, height: height, warmup: syntheticWarmup}, nil
}

// SyntheticTrack первые кадры не готов, затем квадрат движется слева направо
type SyntheticTrack struct {
	mutex  sync.Mutex
	width  int
	height int
	warmup int
	tick   int
	closed bool
}

// ID возвращает идентификатор трека
func (t *SyntheticTrack) ID() string {
	return SyntheticDeviceID
}

// CurrentFrame генерирует следующий кадр
func (t *SyntheticTrack) CurrentFrame() (*domain.Frame, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return nil, errTrackClosed
	}
	if t.warmup > 0 {
		t.warmup--
		return nil, domain.ErrNotReady
	}

	frame := domain.NewFrame(t.width, t.height)
	span := t.width - syntheticBlock
	if span < 1 {
		span = 1
	}
	x := (t.tick * syntheticStep) % span
	y := (t.height - syntheticBlock) / 2
	frame.FillRect(image.Rect(x, y, x+syntheticBlock, y+syntheticBlock), 240, 240, 240)
	t.tick++
	return frame, nil
}

// Close останавливает генерацию
func (t *SyntheticTrack) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closed = true
	return nil
}

// Selector выбирает менеджер по ID устройства: synthetic или реальная камера
type Selector struct {
	devices   application.CameraManager
	synthetic *SyntheticManager
}

// NewSelector объединяет реальные камеры и синтетический источник
func NewSelector(devices application.CameraManager) *Selector {
	return &Selector{devices: devices, synthetic: NewSyntheticManager()}
}

// ListDevices возвращает реальные устройства и синтетический источник
func (s *Selector) ListDevices() ([]domain.VideoDevice, error) {
	found, err := s.devices.ListDevices()
	if err != nil {
		return nil, err
	}
	synthetic, _ := s.synthetic.ListDevices()
	return append(found, synthetic...), nil
}

// OpenCamera открывает устройство по ID
func (s *Selector) OpenCamera(config domain.VideoConfig) (application.VideoTrack, error) {
	if config.DeviceID == SyntheticDeviceID {
		return s.synthetic.OpenCamera(config)
	}
	return s.devices.OpenCamera(config)
}
