package overlay

import (
	"image/color"

	"webcam-motion/internal/domain"
)

// Target поверхность, на которую можно рисовать маркер
type Target interface {
	Resize(width, height int)
	Clear()
	DrawCircle(center domain.Point, radius float64, c color.Color, lineWidth float64)
}

// Fanout повторяет команды рисования на всех поверхностях
type Fanout []Target

func (f Fanout) Resize(width, height int) {
	for _, t := range f {
		t.Resize(width, height)
	}
}

func (f Fanout) Clear() {
	for _, t := range f {
		t.Clear()
	}
}

func (f Fanout) DrawCircle(center domain.Point, radius float64, c color.Color, lineWidth float64) {
	for _, t := range f {
		t.DrawCircle(center, radius, c, lineWidth)
	}
}
