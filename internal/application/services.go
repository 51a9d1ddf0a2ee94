package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"webcam-motion/internal/detection"
	"webcam-motion/internal/domain"
)

const (
	eventQueueSize = 64
	stopTimeout    = 2 * time.Second
)

// ErrNoActiveCapture нет активного захвата
var ErrNoActiveCapture = errors.New("нет активного захвата")

// ServiceOption настраивает MicroscopeService
type ServiceOption func(*MicroscopeService)

// WithServiceClock задает внешние часы (например, цикл отрисовки окна)
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *MicroscopeService) {
		s.clock = clock
	}
}

// WithServiceSurface задает оверлей для подгонки размера
func WithServiceSurface(surface Surface) ServiceOption {
	return func(s *MicroscopeService) {
		s.surface = surface
	}
}

// WithServiceFrameObserver задает получателя обработанных кадров
func WithServiceFrameObserver(observe func(*domain.Frame)) ServiceOption {
	return func(s *MicroscopeService) {
		s.observe = observe
	}
}

// WithServiceRetryPolicy задает политику ожидания первого кадра
func WithServiceRetryPolicy(policy RetryPolicy) ServiceOption {
	return func(s *MicroscopeService) {
		s.retry = policy
	}
}

// WithPublishers добавляет получателей событий
func WithPublishers(publishers ...EventPublisher) ServiceOption {
	return func(s *MicroscopeService) {
		s.publishers = append(s.publishers, publishers...)
	}
}

// MicroscopeService сервис захвата с камеры и детекции движения
type MicroscopeService struct {
	cameraManager CameraManager
	detector      *detection.Detector
	logger        Logger
	clock         Clock
	surface       Surface
	retry         RetryPolicy
	publishers    []EventPublisher
	observe       func(*domain.Frame)
	stopTimeout   time.Duration

	activeTrack VideoTrack
	loop        *Loop
	cancelFunc  context.CancelFunc
	loopDone    chan struct{}
	events      chan domain.DetectionEvent
	pumpDone    chan struct{}
	mutex       sync.Mutex

	statusMutex sync.Mutex
	status      string
}

// NewMicroscopeService создает сервис детекции
func NewMicroscopeService(cameraManager CameraManager, detector *detection.Detector, logger Logger, opts ...ServiceOption) *MicroscopeService {
	s := &MicroscopeService{
		cameraManager: cameraManager,
		detector:      detector,
		logger:        logger,
		retry:         DefaultRetryPolicy(),
		stopTimeout:   stopTimeout,
		status:        "Нажмите open, чтобы включить камеру",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListDevices возвращает список доступных устройств захвата
func (s *MicroscopeService) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := s.cameraManager.ListDevices()
	if err != nil {
		s.logger.Error("Ошибка получения списка устройств: %v", err)
		return nil, err
	}
	return devices, nil
}

// StartCapture открывает камеру и запускает цикл детекции.
// Ошибка открытия возвращается как *domain.AcquisitionError, состояние детектора не меняется.
func (s *MicroscopeService) StartCapture(config domain.VideoConfig) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Если есть активный захват, останавливаем его
	if s.activeTrack != nil {
		s.stopLocked()
	}

	s.logger.Info("Открытие камеры с параметрами: %dx%d, %d fps", config.Width, config.Height, config.FrameRate)

	track, err := s.cameraManager.OpenCamera(config)
	if err != nil {
		var acqErr *domain.AcquisitionError
		if !errors.As(err, &acqErr) {
			acqErr = &domain.AcquisitionError{Device: config.DeviceID, Err: err}
		}
		s.logger.Error("Ошибка открытия камеры: %v", acqErr)
		s.setStatus(acqErr.Error())
		return acqErr
	}

	s.activeTrack = track
	s.logger.Info("Используется камера: %s", track.ID())

	clock := s.clock
	stopClock := func() {}
	if clock == nil {
		ticker := NewTickerClock(config.FrameRate)
		clock, stopClock = ticker, ticker.Stop
	}

	s.events = make(chan domain.DetectionEvent, eventQueueSize)
	s.pumpDone = make(chan struct{})
	go s.pump(s.events, s.pumpDone)

	s.detector.Reset()
	loop := NewLoop(track, s.detector, clock, s.logger,
		WithRetryPolicy(s.retry),
		WithSurface(s.surface),
		WithEventHandler(s.enqueue(s.events)),
		WithFrameObserver(s.observe),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.loop = loop
	s.cancelFunc = cancel
	s.loopDone = make(chan struct{})
	s.setStatus("Детектор активен - ищите движение!")

	go func(done chan struct{}) {
		defer close(done)
		defer stopClock()
		if err := loop.Run(ctx); err != nil {
			s.logger.Error("Ошибка цикла детекции: %v", err)
			s.setStatus(fmt.Sprintf("Детекция остановлена: %v", err))
		}
	}(s.loopDone)

	return nil
}

// StopCapture останавливает детекцию и освобождает камеру
func (s *MicroscopeService) StopCapture() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.activeTrack == nil {
		return ErrNoActiveCapture
	}
	s.stopLocked()
	return nil
}

func (s *MicroscopeService) stopLocked() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	// Текущий такт дорабатывает; зависшее чтение кадра прерывается закрытием трека
	select {
	case <-s.loopDone:
	case <-time.After(s.stopTimeout):
		s.logger.Debug("Цикл не завершился за %v, закрываем трек", s.stopTimeout)
	}

	if err := s.activeTrack.Close(); err != nil {
		s.logger.Error("Ошибка закрытия трека: %v", err)
	}
	<-s.loopDone

	close(s.events)
	<-s.pumpDone

	s.activeTrack = nil
	s.cancelFunc = nil
	s.setStatus("Камера выключена")
}

// Close останавливает захват и закрывает всех получателей событий
func (s *MicroscopeService) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.activeTrack != nil {
		s.stopLocked()
	}

	var errs []error
	for _, p := range s.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Configure меняет порог и минимальное число пикселей детектора
func (s *MicroscopeService) Configure(threshold, minPixels int) error {
	if err := s.detector.Configure(threshold, minPixels); err != nil {
		s.logger.Error("Отклонена конфигурация: %v", err)
		return err
	}
	s.logger.Info("Threshold: %d, минимум пикселей: %d", threshold, minPixels)
	s.setStatus(fmt.Sprintf("Threshold: %d", threshold))
	return nil
}

// Config возвращает текущую конфигурацию детектора
func (s *MicroscopeService) Config() domain.DetectorConfig {
	return s.detector.Config()
}

// Detections возвращает журнал событий сессии
func (s *MicroscopeService) Detections() []domain.DetectionEvent {
	return s.detector.Detections()
}

// Stats возвращает счетчики последнего цикла детекции
func (s *MicroscopeService) Stats() LoopStats {
	s.mutex.Lock()
	loop := s.loop
	s.mutex.Unlock()
	if loop == nil {
		return LoopStats{}
	}
	return loop.Stats()
}

// Status возвращает сообщение для оператора
func (s *MicroscopeService) Status() string {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()
	return s.status
}

func (s *MicroscopeService) setStatus(status string) {
	s.statusMutex.Lock()
	s.status = status
	s.statusMutex.Unlock()
}

func (s *MicroscopeService) enqueue(events chan<- domain.DetectionEvent) func(domain.DetectionEvent) {
	return func(event domain.DetectionEvent) {
		if len(s.publishers) == 0 {
			return
		}
		select {
		case events <- event:
		default:
			s.logger.Error("Очередь событий переполнена, событие %s не отправлено", event.ID)
		}
	}
}

// pump рассылает события получателям вне цикла детекции
func (s *MicroscopeService) pump(events <-chan domain.DetectionEvent, done chan<- struct{}) {
	defer close(done)
	for event := range events {
		for _, p := range s.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.Publish(ctx, event); err != nil {
				s.logger.Error("Ошибка отправки события %s: %v", event.ID, err)
			}
			cancel()
		}
	}
}
