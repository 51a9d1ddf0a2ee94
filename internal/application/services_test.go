package application

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"webcam-motion/internal/domain"
)

// blinkingTrack чередует черный кадр и кадр с блоком, каждое сравнение дает событие
type blinkingTrack struct {
	mutex  sync.Mutex
	n      int
	closed bool
}

func (t *blinkingTrack) ID() string { return "blink" }

func (t *blinkingTrack) CurrentFrame() (*domain.Frame, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.closed {
		return nil, errors.New("трек закрыт")
	}
	t.n++
	if t.n%2 == 0 {
		return withBlock(image.Rect(50, 50, 70, 70)), nil
	}
	return black(), nil
}

func (t *blinkingTrack) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.closed = true
	return nil
}

func (t *blinkingTrack) isClosed() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.closed
}

type fakeCameraManager struct {
	track   VideoTrack
	openErr error
	opened  int
}

func (m *fakeCameraManager) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: "blink", Label: "Blink", Kind: "videoinput"}}, nil
}

func (m *fakeCameraManager) OpenCamera(domain.VideoConfig) (VideoTrack, error) {
	m.opened++
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.track, nil
}

type recordingPublisher struct {
	mutex     sync.Mutex
	events    []domain.DetectionEvent
	published chan struct{}
	closed    bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(chan struct{}, 1)}
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.DetectionEvent) error {
	p.mutex.Lock()
	p.events = append(p.events, event)
	p.mutex.Unlock()
	select {
	case p.published <- struct{}{}:
	default:
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

func TestStartCaptureAcquisitionError(t *testing.T) {
	detector := newDetector(t)
	detector.OnFrameAvailable(black())
	manager := &fakeCameraManager{openErr: errors.New("permission denied")}
	service := NewMicroscopeService(manager, detector, nopLogger{})

	err := service.StartCapture(domain.VideoConfig{DeviceID: "cam0"})
	var acqErr *domain.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}
	if acqErr.Device != "cam0" {
		t.Fatalf("expected device cam0, got %q", acqErr.Device)
	}
	if !strings.Contains(service.Status(), "permission denied") {
		t.Fatalf("expected status to report the error, got %q", service.Status())
	}
	if detector.State().String() != "running" {
		t.Fatal("acquisition failure must not reset the detector")
	}
	if err := service.StopCapture(); !errors.Is(err, ErrNoActiveCapture) {
		t.Fatalf("expected ErrNoActiveCapture, got %v", err)
	}

	manager.openErr = nil
	manager.track = &blinkingTrack{}
	if err := service.StartCapture(domain.VideoConfig{FrameRate: 1000}); err != nil {
		t.Fatalf("retry acquisition: %v", err)
	}
	if err := service.StopCapture(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestCapturePublishesAndReleasesTrack(t *testing.T) {
	track := &blinkingTrack{}
	publisher := newRecordingPublisher()
	service := NewMicroscopeService(&fakeCameraManager{track: track}, newDetector(t), nopLogger{},
		WithPublishers(publisher),
	)

	if err := service.StartCapture(domain.VideoConfig{FrameRate: 1000}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-publisher.published:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a published event")
	}

	if err := service.StopCapture(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !track.isClosed() {
		t.Fatal("expected track to be closed after stop")
	}
	if len(service.Detections()) == 0 {
		t.Fatal("expected detections in the log")
	}
	if service.Stats().Detections == 0 {
		t.Fatal("expected loop stats to count detections")
	}

	if err := service.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if !publisher.closed {
		t.Fatal("expected publisher closed")
	}
	if len(publisher.events) == 0 || publisher.events[0].Pixels != 400 {
		t.Fatalf("unexpected published events %+v", publisher.events)
	}
}

func TestConfigureUpdatesStatus(t *testing.T) {
	service := NewMicroscopeService(&fakeCameraManager{}, newDetector(t), nopLogger{})

	if err := service.Configure(40, 10); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if service.Status() != "Threshold: 40" {
		t.Fatalf("unexpected status %q", service.Status())
	}
	if err := service.Configure(-1, 10); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if got := service.Config(); got.Threshold != 40 || got.MinPixels != 10 {
		t.Fatalf("unexpected config %+v", got)
	}
}

func TestListDevices(t *testing.T) {
	service := NewMicroscopeService(&fakeCameraManager{}, newDetector(t), nopLogger{})

	devices, err := service.ListDevices()
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "blink" {
		t.Fatalf("unexpected devices %+v", devices)
	}
}

// stuckTrack отдает один кадр, затем чтение висит, пока трек не закроют
type stuckTrack struct {
	mutex     sync.Mutex
	calls     int
	closed    chan struct{}
	closeOnce sync.Once
	reading   chan struct{}
}

func newStuckTrack() *stuckTrack {
	return &stuckTrack{closed: make(chan struct{}), reading: make(chan struct{}, 1)}
}

func (t *stuckTrack) ID() string { return "stuck" }

func (t *stuckTrack) CurrentFrame() (*domain.Frame, error) {
	t.mutex.Lock()
	t.calls++
	first := t.calls == 1
	t.mutex.Unlock()
	if first {
		return black(), nil
	}
	select {
	case t.reading <- struct{}{}:
	default:
	}
	<-t.closed
	return nil, errors.New("трек закрыт")
}

func (t *stuckTrack) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func TestStopCaptureInterruptsBlockedRead(t *testing.T) {
	track := newStuckTrack()
	service := NewMicroscopeService(&fakeCameraManager{track: track}, newDetector(t), nopLogger{})
	service.stopTimeout = 50 * time.Millisecond

	if err := service.StartCapture(domain.VideoConfig{FrameRate: 1000}); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-track.reading:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never reached the blocking read")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- service.StopCapture() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StopCapture hung on a blocked read")
	}

	select {
	case <-track.closed:
	default:
		t.Fatal("expected track to be released")
	}
	if service.Status() != "Камера выключена" {
		t.Fatalf("unexpected status %q", service.Status())
	}
}

// stalledPublisher зависает на первой отправке, пока его не отпустят
type stalledPublisher struct {
	mutex   sync.Mutex
	calls   int
	release chan struct{}
}

func (p *stalledPublisher) Publish(ctx context.Context, _ domain.DetectionEvent) error {
	p.mutex.Lock()
	p.calls++
	p.mutex.Unlock()
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *stalledPublisher) Close() error { return nil }

func (p *stalledPublisher) callCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls
}

func TestFullEventQueueDoesNotBlockLoop(t *testing.T) {
	publisher := &stalledPublisher{release: make(chan struct{})}
	service := NewMicroscopeService(&fakeCameraManager{track: &blinkingTrack{}}, newDetector(t), nopLogger{},
		WithPublishers(publisher),
	)
	if err := service.StartCapture(domain.VideoConfig{FrameRate: 1000}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Очередь плюс событие в зависшей отправке: дальше события отбрасываются
	want := eventQueueSize*2 + 1
	deadline := time.Now().Add(10 * time.Second)
	for service.Stats().Detections < want {
		if time.Now().After(deadline) {
			t.Fatalf("loop stalled at %d detections", service.Stats().Detections)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := publisher.callCount(); got != 1 {
		t.Fatalf("expected a single in-flight publish, got %d", got)
	}
	if got := len(service.Detections()); got < want {
		t.Fatalf("expected every detection in the log, got %d", got)
	}

	close(publisher.release)
	if err := service.StopCapture(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
