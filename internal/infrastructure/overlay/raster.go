// Package overlay содержит поверхности, на которых рисуется маркер движения.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"webcam-motion/internal/domain"
)

const circleSegments = 96

// Raster оверлей в памяти, прозрачный везде, кроме маркера
type Raster struct {
	mutex sync.Mutex
	img   *image.RGBA
	frame *domain.Frame
}

// NewRaster создает оверлей заданного размера
func NewRaster(width, height int) *Raster {
	return &Raster{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Resize подгоняет оверлей под размер кадра и очищает его
func (r *Raster) Resize(width, height int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Clear делает оверлей полностью прозрачным
func (r *Raster) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clear(r.img.Pix)
}

// DrawCircle рисует кольцо толщиной lineWidth с центром center
func (r *Raster) DrawCircle(center domain.Point, radius float64, c color.Color, lineWidth float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	b := r.img.Bounds()
	if b.Empty() {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	half := lineWidth / 2
	addCircle(z, b, center, radius+half, false)
	if inner := radius - half; inner > 0 {
		addCircle(z, b, center, inner, true)
	}
	z.Draw(r.img, b, image.NewUniform(c), image.Point{})
}

// Snapshot возвращает копию оверлея
func (r *Raster) Snapshot() *image.RGBA {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := image.NewRGBA(r.img.Bounds())
	copy(out.Pix, r.img.Pix)
	return out
}

// Compose накладывает оверлей на кадр и возвращает результат
func (r *Raster) Compose(frame *domain.Frame) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	draw.Copy(out, image.Point{}, frame.Image(), out.Bounds(), draw.Src, nil)
	snap := r.Snapshot()
	draw.Copy(out, image.Point{}, snap, snap.Bounds(), draw.Over, nil)
	return out
}

// ObserveFrame запоминает последний кадр для снимков
func (r *Raster) ObserveFrame(frame *domain.Frame) {
	r.mutex.Lock()
	r.frame = frame
	r.mutex.Unlock()
}

// SavePNG сохраняет в PNG последний кадр с маркером, а без кадра только оверлей
func (r *Raster) SavePNG(path string) error {
	r.mutex.Lock()
	frame := r.frame
	r.mutex.Unlock()
	if frame.Empty() {
		return writePNG(path, r.Snapshot())
	}
	return writePNG(path, r.Compose(frame))
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("создание %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("кодирование png: %w", err)
	}
	return f.Close()
}

// addCircle добавляет многоугольник, приближающий окружность. Обход в обратную
// сторону вычитает площадь, так получается кольцо.
func addCircle(z *vector.Rasterizer, b image.Rectangle, center domain.Point, radius float64, reverse bool) {
	point := func(i int) (float32, float32) {
		a := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			a = -a
		}
		x := clamp(center.X+radius*math.Cos(a), 0, float64(b.Dx()))
		y := clamp(center.Y+radius*math.Sin(a), 0, float64(b.Dy()))
		return float32(x), float32(y)
	}
	z.MoveTo(point(0))
	for i := 1; i < circleSegments; i++ {
		z.LineTo(point(i))
	}
	z.ClosePath()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
