// Package window показывает кадры камеры и маркер движения в окне ebiten.
// Цикл Update окна служит часами детекции: один такт на обновление экрана.
package window

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
)

// ErrClosed окно закрыто, тактов больше не будет
var ErrClosed = fmt.Errorf("окно закрыто: %w", application.ErrClockStopped)

const (
	defaultWidth  = 640
	defaultHeight = 480
)

type marker struct {
	center    domain.Point
	radius    float64
	color     color.Color
	lineWidth float64
}

// Window окно просмотра. Реализует оверлей, часы и получателя кадров.
type Window struct {
	title string
	ticks chan struct{}

	mutex   sync.Mutex
	width   int
	height  int
	frame   *domain.Frame
	dirty   bool
	marker  *marker
	picture *ebiten.Image

	quit      chan struct{}
	quitOnce  sync.Once
	done      chan struct{}
	closeDone sync.Once
}

// New создает окно с заголовком title
func New(title string) *Window {
	return &Window{
		title:  title,
		ticks:  make(chan struct{}),
		width:  defaultWidth,
		height: defaultHeight,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run открывает окно и блокируется до его закрытия. Вызывать из main горутины.
func (w *Window) Run() error {
	defer w.closeDone.Do(func() { close(w.done) })

	w.mutex.Lock()
	width, height := w.width, w.height
	w.mutex.Unlock()

	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)

	err := ebiten.RunGame(w)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Close просит окно закрыться на следующем обновлении
func (w *Window) Close() {
	w.quitOnce.Do(func() { close(w.quit) })
}

// Done закрывается, когда окно закрыто
func (w *Window) Done() <-chan struct{} {
	return w.done
}

// Next ждет следующего обновления экрана
func (w *Window) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrClosed
	case <-w.ticks:
		return nil
	}
}

// Resize подгоняет окно под размер кадра
func (w *Window) Resize(width, height int) {
	w.mutex.Lock()
	w.width, w.height = width, height
	w.marker = nil
	w.mutex.Unlock()
	ebiten.SetWindowSize(width, height)
}

// Clear убирает маркер
func (w *Window) Clear() {
	w.mutex.Lock()
	w.marker = nil
	w.mutex.Unlock()
}

// DrawCircle запоминает маркер, он рисуется в следующем Draw
func (w *Window) DrawCircle(center domain.Point, radius float64, c color.Color, lineWidth float64) {
	w.mutex.Lock()
	w.marker = &marker{center: center, radius: radius, color: c, lineWidth: lineWidth}
	w.mutex.Unlock()
}

// ObserveFrame запоминает кадр для отображения
func (w *Window) ObserveFrame(frame *domain.Frame) {
	w.mutex.Lock()
	w.frame = frame
	w.dirty = true
	w.mutex.Unlock()
}

// Update вызывается ebiten на каждом такте
func (w *Window) Update() error {
	select {
	case <-w.quit:
		return ebiten.Termination
	default:
	}

	// Если цикл детекции еще занят прошлым кадром, такт пропускается
	select {
	case w.ticks <- struct{}{}:
	default:
	}
	return nil
}

// Draw рисует последний кадр и маркер
func (w *Window) Draw(screen *ebiten.Image) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.frame != nil {
		if w.picture == nil || w.picture.Bounds().Dx() != w.frame.Width || w.picture.Bounds().Dy() != w.frame.Height {
			if w.picture != nil {
				w.picture.Deallocate()
			}
			w.picture = ebiten.NewImage(w.frame.Width, w.frame.Height)
			w.dirty = true
		}
		if w.dirty {
			w.picture.WritePixels(w.frame.Pix)
			w.dirty = false
		}
		screen.DrawImage(w.picture, nil)
	}

	if m := w.marker; m != nil {
		vector.StrokeCircle(screen, float32(m.center.X), float32(m.center.Y), float32(m.radius),
			float32(m.lineWidth), m.color, true)
	}
}

// Layout сохраняет размер логического экрана равным размеру кадра
func (w *Window) Layout(_, _ int) (int, int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.width, w.height
}
