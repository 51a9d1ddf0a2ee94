package domain

import (
	"image"

	"golang.org/x/image/draw"
)

// Frame кадр в формате RGBA, 4 байта на пиксель, строки подряд
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame создает черный кадр заданного размера
func NewFrame(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	pix := make([]byte, width*height*4)
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xFF
	}
	return &Frame{Width: width, Height: height, Pix: pix}
}

// FrameFromImage конвертирует декодированное изображение камеры в кадр.
// Пиксели всегда копируются: буфер драйвера переиспользуется после release.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(rgba, image.Point{}, img, b, draw.Src, nil)
	return &Frame{Width: b.Dx(), Height: b.Dy(), Pix: rgba.Pix}
}

// Empty сообщает, что у кадра нулевой размер (источник еще не готов)
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0
}

// SameSize сравнивает размеры двух кадров
func (f *Frame) SameSize(other *Frame) bool {
	return f.Width == other.Width && f.Height == other.Height
}

// RGB возвращает каналы пикселя (x, y)
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 4
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB задает каналы пикселя (x, y)
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * 4
	f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = r, g, b, 0xFF
}

// FillRect закрашивает прямоугольник, обрезанный по границам кадра
func (f *Frame) FillRect(rect image.Rectangle, r, g, b uint8) {
	rect = rect.Intersect(image.Rect(0, 0, f.Width, f.Height))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			f.SetRGB(x, y, r, g, b)
		}
	}
}

// Clone возвращает независимую копию кадра
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// Image представляет кадр как *image.RGBA без копирования
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{Pix: f.Pix, Stride: f.Width * 4, Rect: image.Rect(0, 0, f.Width, f.Height)}
}
