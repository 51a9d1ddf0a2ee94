package domain

import (
	"errors"
	"fmt"
	"time"
)

// Значения по умолчанию для детектора движения
const (
	DefaultThreshold = 35
	DefaultMinPixels = 300
)

// ErrInvalidConfig возвращается при отрицательных параметрах детектора
var ErrInvalidConfig = errors.New("некорректная конфигурация детектора")

// Point координаты в пикселях кадра
type Point struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

// DetectionEvent запись об обнаруженном движении. После создания не изменяется.
type DetectionEvent struct {
	ID       string    `json:"id" cbor:"id"`
	Time     time.Time `json:"time" cbor:"time"`
	Centroid Point     `json:"centroid" cbor:"centroid"`
	Pixels   int       `json:"pixels" cbor:"pixels"`
}

// DetectorConfig содержит параметры детектора движения
type DetectorConfig struct {
	Threshold int `json:"threshold"` // Минимальная сумма разниц каналов для "сдвинутого" пикселя
	MinPixels int `json:"minPixels"` // Событие создается, только если сдвинутых пикселей строго больше
}

// DefaultDetectorConfig возвращает конфигурацию со значениями по умолчанию
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{Threshold: DefaultThreshold, MinPixels: DefaultMinPixels}
}

// Validate проверяет, что параметры неотрицательные
func (c DetectorConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("%w: threshold=%d", ErrInvalidConfig, c.Threshold)
	}
	if c.MinPixels < 0 {
		return fmt.Errorf("%w: minPixels=%d", ErrInvalidConfig, c.MinPixels)
	}
	return nil
}

// VideoDevice представляет устройство захвата видео
type VideoDevice struct {
	ID    string // Уникальный идентификатор устройства
	Label string // Человекочитаемое имя устройства
	Kind  string // Тип устройства
}

// VideoConfig содержит параметры захвата видео
type VideoConfig struct {
	Width     int    // Ширина видео в пикселях
	Height    int    // Высота видео в пикселях
	FrameRate int    // Частота кадров
	DeviceID  string // ID устройства для захвата
}
