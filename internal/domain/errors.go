package domain

import (
	"errors"
	"fmt"
)

// ErrNotReady источник еще не выдал декодируемый кадр. Это не ошибка, а ожидание старта.
var ErrNotReady = errors.New("источник кадров не готов")

// AcquisitionError ошибка доступа к камере (нет устройства, отказано в доступе)
type AcquisitionError struct {
	Device string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("ошибка камеры: %v", e.Err)
	}
	return fmt.Sprintf("ошибка камеры %s: %v", e.Device, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
