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

// DefaultRetryInterval интервал повторной проверки источника при старте
const DefaultRetryInterval = 500 * time.Millisecond

// ErrClockStopped часы больше не выдадут тактов (например, окно закрыто). Цикл завершается без ошибки.
var ErrClockStopped = errors.New("часы остановлены")

// ErrSourceNotReady источник так и не выдал кадр за отведенное число попыток
var ErrSourceNotReady = errors.New("источник кадров не готов после всех попыток")

// RetryPolicy политика ожидания первого кадра. MaxAttempts 0 означает ждать бесконечно.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy каждые 500 мс без ограничения числа попыток
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultRetryInterval}
}

// LoopStats счетчики цикла детекции
type LoopStats struct {
	Frames      int // Обработано кадров
	Comparisons int // Сравнений с предыдущим кадром
	Detections  int // Создано событий
	Skipped     int // Пропущено тактов, кадр не был готов
	Retries     int // Повторов ожидания при старте
}

// LoopOption настраивает цикл детекции
type LoopOption func(*Loop)

// WithRetryPolicy задает политику ожидания первого кадра
func WithRetryPolicy(policy RetryPolicy) LoopOption {
	return func(l *Loop) {
		l.retry = policy
	}
}

// WithSurface задает оверлей, который подгоняется под размер кадра
func WithSurface(surface Surface) LoopOption {
	return func(l *Loop) {
		l.surface = surface
	}
}

// WithEventHandler задает обработчик новых событий
func WithEventHandler(handler func(domain.DetectionEvent)) LoopOption {
	return func(l *Loop) {
		l.onEvent = handler
	}
}

// WithFrameObserver задает получателя каждого обработанного кадра (например, окно просмотра)
func WithFrameObserver(observe func(*domain.Frame)) LoopOption {
	return func(l *Loop) {
		l.observe = observe
	}
}

// Loop цикл детекции: один кадр на такт, такты никогда не пересекаются
type Loop struct {
	source   FrameSource
	detector *detection.Detector
	clock    Clock
	logger   Logger
	retry    RetryPolicy
	surface  Surface
	onEvent  func(domain.DetectionEvent)
	observe  func(*domain.Frame)

	width  int
	height int

	mutex sync.Mutex
	stats LoopStats
}

// NewLoop создает цикл детекции
func NewLoop(source FrameSource, detector *detection.Detector, clock Clock, logger Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		source:   source,
		detector: detector,
		clock:    clock,
		logger:   logger,
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run ждет первый кадр и затем обрабатывает по кадру на каждый такт часов.
// Возвращает nil после отмены контекста или остановки часов.
func (l *Loop) Run(ctx context.Context) error {
	frame, err := l.awaitFirstFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	l.logger.Info("Источник готов: %dx%d", frame.Width, frame.Height)
	l.step(frame)

	for {
		if err := l.clock.Next(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrClockStopped) {
				l.logger.Info("Часы остановлены: %v", err)
				return nil
			}
			return fmt.Errorf("ожидание такта: %w", err)
		}

		frame, err := l.source.CurrentFrame()
		if err == nil && frame.Empty() {
			err = domain.ErrNotReady
		}
		switch {
		case errors.Is(err, domain.ErrNotReady):
			l.mutex.Lock()
			l.stats.Skipped++
			l.mutex.Unlock()
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("чтение кадра: %w", err)
		}

		l.step(frame)
	}
}

// Stats возвращает копию счетчиков
func (l *Loop) Stats() LoopStats {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.stats
}

func (l *Loop) awaitFirstFrame(ctx context.Context) (*domain.Frame, error) {
	attempts := 0
	for {
		frame, err := l.source.CurrentFrame()
		if err == nil && frame.Empty() {
			err = domain.ErrNotReady
		}
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, domain.ErrNotReady) {
			return nil, fmt.Errorf("чтение первого кадра: %w", err)
		}

		attempts++
		if l.retry.MaxAttempts > 0 && attempts >= l.retry.MaxAttempts {
			return nil, fmt.Errorf("%w: попыток %d", ErrSourceNotReady, attempts)
		}
		l.mutex.Lock()
		l.stats.Retries++
		l.mutex.Unlock()
		l.logger.Debug("Видео еще не готово, повтор через %v", l.retry.Interval)

		timer := time.NewTimer(l.retry.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) step(frame *domain.Frame) {
	// Оверлей следует за размером кадра
	if l.surface != nil && (frame.Width != l.width || frame.Height != l.height) {
		l.surface.Resize(frame.Width, frame.Height)
	}
	l.width, l.height = frame.Width, frame.Height

	if l.observe != nil {
		l.observe(frame)
	}
	event, result := l.detector.OnFrameAvailable(frame)

	l.mutex.Lock()
	l.stats.Frames++
	if result.Compared {
		l.stats.Comparisons++
	}
	if event != nil {
		l.stats.Detections++
	}
	stats := l.stats
	l.mutex.Unlock()

	if event != nil {
		l.logger.Debug("Движение: центр (%.1f, %.1f), пикселей: %d",
			event.Centroid.X, event.Centroid.Y, event.Pixels)
		if l.onEvent != nil {
			l.onEvent(*event)
		}
	}

	if stats.Frames%30 == 0 {
		l.logger.Debug("Обработано кадров: %d, сравнений: %d, событий: %d, пропущено тактов: %d",
			stats.Frames, stats.Comparisons, stats.Detections, stats.Skipped)
	}
}

// TickerClock часы с фиксированной частотой кадров
type TickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock создает часы на fps тактов в секунду (по умолчанию 30)
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 30
	}
	return &TickerClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Next ждет следующего такта
func (c *TickerClock) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop останавливает часы
func (c *TickerClock) Stop() {
	c.ticker.Stop()
}
