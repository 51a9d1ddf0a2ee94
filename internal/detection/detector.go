// Package detection реализует детектор движения по разнице соседних кадров.
//
// Детектор хранит один предыдущий кадр, сравнивает с ним каждый новый кадр
// попиксельно и при достаточном числе изменившихся пикселей добавляет событие
// с центром масс движения в журнал и рисует маркер на оверлее.
package detection

import (
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"

	"webcam-motion/internal/domain"
)

// Параметры маркера движения
const (
	MarkerRadius    = 25.0
	MarkerLineWidth = 3.0
)

// MarkerColor цвет кольца вокруг центра движения (#ff4444)
var MarkerColor = color.RGBA{R: 0xff, G: 0x44, B: 0x44, A: 0xff}

// Overlay поверхность, на которой детектор рисует маркер
type Overlay interface {
	Clear()
	DrawCircle(center domain.Point, radius float64, c color.Color, lineWidth float64)
}

// State состояние детектора
type State int

const (
	StateUninitialized State = iota // Предыдущего кадра нет
	StateRunning                    // Предыдущий кадр сохранен
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Result итог обработки одного кадра
type Result struct {
	Compared    bool // Было ли сравнение с предыдущим кадром
	MotionCount int  // Количество сдвинутых пикселей
}

// Option настраивает детектор
type Option func(*Detector)

// WithClock подменяет источник времени для событий
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// WithIDs подменяет генератор идентификаторов событий
func WithIDs(newID func() string) Option {
	return func(d *Detector) {
		d.newID = newID
	}
}

// Detector детектор движения. OnFrameAvailable вызывается из одного цикла,
// Configure и Detections безопасны из других горутин.
type Detector struct {
	overlay Overlay
	now     func() time.Time
	newID   func() string

	mu     sync.Mutex
	config domain.DetectorConfig
	log    []domain.DetectionEvent

	prev *domain.Frame
}

// New создает детектор. Оверлей может быть nil.
func New(config domain.DetectorConfig, overlay Overlay, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		overlay: overlay,
		now:     time.Now,
		newID:   uuid.NewString,
		config:  config,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Configure задает порог и минимальное число пикселей. Действует со следующего сравнения.
func (d *Detector) Configure(threshold, minPixels int) error {
	config := domain.DetectorConfig{Threshold: threshold, MinPixels: minPixels}
	if err := config.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.config = config
	d.mu.Unlock()
	return nil
}

// Config возвращает текущую конфигурацию
func (d *Detector) Config() domain.DetectorConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// State возвращает текущее состояние детектора
func (d *Detector) State() State {
	if d.prev == nil {
		return StateUninitialized
	}
	return StateRunning
}

// Reset забывает предыдущий кадр. Журнал не очищается.
func (d *Detector) Reset() {
	d.prev = nil
}

// OnFrameAvailable сравнивает кадр с предыдущим и возвращает событие, если
// сдвинутых пикселей строго больше MinPixels.
func (d *Detector) OnFrameAvailable(frame *domain.Frame) (*domain.DetectionEvent, Result) {
	if d.prev == nil || !d.prev.SameSize(frame) {
		if d.prev != nil && d.overlay != nil {
			d.overlay.Clear()
		}
		d.prev = frame
		return nil, Result{}
	}

	config := d.Config()
	count, sumX, sumY := diff(d.prev, frame, config.Threshold)
	result := Result{Compared: true, MotionCount: count}

	if d.overlay != nil {
		d.overlay.Clear()
	}

	var event *domain.DetectionEvent
	if count > config.MinPixels {
		centroid := domain.Point{
			X: float64(sumX) / float64(count),
			Y: float64(sumY) / float64(count),
		}
		if d.overlay != nil {
			d.overlay.DrawCircle(centroid, MarkerRadius, MarkerColor, MarkerLineWidth)
		}
		event = &domain.DetectionEvent{
			ID:       d.newID(),
			Time:     d.now(),
			Centroid: centroid,
			Pixels:   count,
		}
		d.mu.Lock()
		d.log = append(d.log, *event)
		d.mu.Unlock()
	}

	d.prev = frame
	return event, result
}

// Detections возвращает копию журнала событий в порядке появления
func (d *Detector) Detections() []domain.DetectionEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.DetectionEvent, len(d.log))
	copy(out, d.log)
	return out
}

// Len возвращает число событий в журнале
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.log)
}

// diff считает сдвинутые пиксели и суммы их координат. Кадры одного размера.
func diff(prev, cur *domain.Frame, threshold int) (count int, sumX, sumY int64) {
	a, b := prev.Pix, cur.Pix
	w := cur.Width
	for i := 0; i+3 < len(b); i += 4 {
		delta := absDiff(a[i], b[i]) + absDiff(a[i+1], b[i+1]) + absDiff(a[i+2], b[i+2])
		if delta > threshold {
			p := i / 4
			count++
			sumX += int64(p % w)
			sumY += int64(p / w)
		}
	}
	return count, sumX, sumY
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
