package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"webcam-motion/internal/detection"
	"webcam-motion/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type sourceStep struct {
	frame *domain.Frame
	err   error
}

// scriptedSource отдает шаги по порядку, затем ErrNotReady
type scriptedSource struct {
	steps []sourceStep
	calls int
}

func (s *scriptedSource) CurrentFrame() (*domain.Frame, error) {
	s.calls++
	if len(s.steps) == 0 {
		return nil, domain.ErrNotReady
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.frame, step.err
}

// countingClock пропускает заданное число тактов и затем отменяет контекст
type countingClock struct {
	remaining int
	cancel    context.CancelFunc
}

func (c *countingClock) Next(ctx context.Context) error {
	if c.remaining == 0 {
		c.cancel()
		return ctx.Err()
	}
	c.remaining--
	return nil
}

type recordingSurface struct {
	width, height int
}

func (s *recordingSurface) Resize(width, height int) {
	s.width, s.height = width, height
}

func black() *domain.Frame {
	return domain.NewFrame(200, 200)
}

func withBlock(rect image.Rectangle) *domain.Frame {
	f := domain.NewFrame(200, 200)
	f.FillRect(rect, 255, 255, 255)
	return f
}

func newDetector(t *testing.T) *detection.Detector {
	t.Helper()
	d, err := detection.New(domain.DefaultDetectorConfig(), nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	return d
}

func TestLoopScriptedSequence(t *testing.T) {
	block := image.Rect(50, 50, 70, 70)
	source := &scriptedSource{steps: []sourceStep{
		{frame: black()},
		{frame: withBlock(block)},
		{frame: withBlock(block)},
		{frame: black()},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []domain.DetectionEvent
	surface := &recordingSurface{}
	loop := NewLoop(source, newDetector(t), &countingClock{remaining: 3, cancel: cancel}, nopLogger{},
		WithSurface(surface),
		WithEventHandler(func(e domain.DetectionEvent) { events = append(events, e) }),
	)

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Pixels != 400 || e.Centroid != (domain.Point{X: 59.5, Y: 59.5}) {
			t.Fatalf("unexpected event %+v", e)
		}
	}
	stats := loop.Stats()
	if stats.Frames != 4 || stats.Comparisons != 3 || stats.Detections != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if surface.width != 200 || surface.height != 200 {
		t.Fatalf("expected surface sized to 200x200, got %dx%d", surface.width, surface.height)
	}
}

func TestLoopWaitsForSourceAtStartup(t *testing.T) {
	source := &scriptedSource{steps: []sourceStep{
		{err: domain.ErrNotReady},
		{frame: domain.NewFrame(0, 0)},
		{frame: black()},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(source, newDetector(t), &countingClock{cancel: cancel}, nopLogger{},
		WithRetryPolicy(RetryPolicy{Interval: time.Millisecond}),
	)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	stats := loop.Stats()
	if stats.Retries != 2 {
		t.Fatalf("expected 2 retries, got %d", stats.Retries)
	}
	if stats.Frames != 1 {
		t.Fatalf("expected first frame processed, got %d", stats.Frames)
	}
}

func TestLoopBoundedRetryGivesUp(t *testing.T) {
	source := &scriptedSource{}
	loop := NewLoop(source, newDetector(t), &countingClock{cancel: func() {}}, nopLogger{},
		WithRetryPolicy(RetryPolicy{Interval: time.Millisecond, MaxAttempts: 3}),
	)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrSourceNotReady) {
		t.Fatalf("expected ErrSourceNotReady, got %v", err)
	}
	if source.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", source.calls)
	}
}

func TestLoopSkipsTickWhenFrameNotReady(t *testing.T) {
	source := &scriptedSource{steps: []sourceStep{
		{frame: black()},
		{err: domain.ErrNotReady},
		{frame: black()},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(source, newDetector(t), &countingClock{remaining: 2, cancel: cancel}, nopLogger{})
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	stats := loop.Stats()
	if stats.Skipped != 1 || stats.Frames != 2 || stats.Comparisons != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLoopReturnsSourceError(t *testing.T) {
	errBoom := errors.New("устройство отключено")
	source := &scriptedSource{steps: []sourceStep{
		{frame: black()},
		{err: errBoom},
	}}
	loop := NewLoop(source, newDetector(t), &countingClock{remaining: 5, cancel: func() {}}, nopLogger{})

	err := loop.Run(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestLoopCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(&scriptedSource{}, newDetector(t), &countingClock{cancel: cancel}, nopLogger{},
		WithRetryPolicy(RetryPolicy{Interval: time.Hour}),
	)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("expected nil after cancellation, got %v", err)
	}
}

func TestTickerClockHonoursContext(t *testing.T) {
	clock := NewTickerClock(1)
	defer clock.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clock.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type resizeRecorder struct {
	sizes []image.Point
}

func (s *resizeRecorder) Resize(width, height int) {
	s.sizes = append(s.sizes, image.Pt(width, height))
}

func TestLoopResizesSurfaceWhenFrameSizeChanges(t *testing.T) {
	moved := domain.NewFrame(400, 300)
	moved.FillRect(image.Rect(300, 250, 320, 270), 255, 255, 255)
	source := &scriptedSource{steps: []sourceStep{
		{frame: domain.NewFrame(100, 100)},
		{frame: domain.NewFrame(400, 300)},
		{frame: moved},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []domain.DetectionEvent
	surface := &resizeRecorder{}
	loop := NewLoop(source, newDetector(t), &countingClock{remaining: 2, cancel: cancel}, nopLogger{},
		WithSurface(surface),
		WithEventHandler(func(e domain.DetectionEvent) { events = append(events, e) }),
	)
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []image.Point{image.Pt(100, 100), image.Pt(400, 300)}
	if len(surface.sizes) != len(want) || surface.sizes[0] != want[0] || surface.sizes[1] != want[1] {
		t.Fatalf("expected resizes %v, got %v", want, surface.sizes)
	}
	if len(events) != 1 || events[0].Centroid != (domain.Point{X: 309.5, Y: 259.5}) {
		t.Fatalf("unexpected events %+v", events)
	}
	last := surface.sizes[len(surface.sizes)-1]
	if c := events[0].Centroid; c.X >= float64(last.X) || c.Y >= float64(last.Y) {
		t.Fatalf("centroid %+v outside %v overlay", c, last)
	}
}

type stoppedClock struct{}

func (stoppedClock) Next(context.Context) error {
	return fmt.Errorf("окно закрыто: %w", ErrClockStopped)
}

func TestLoopEndsQuietlyWhenClockStops(t *testing.T) {
	source := &scriptedSource{steps: []sourceStep{{frame: black()}}}
	loop := NewLoop(source, newDetector(t), stoppedClock{}, nopLogger{})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("expected nil when the clock stops, got %v", err)
	}
	if loop.Stats().Frames != 1 {
		t.Fatalf("unexpected stats %+v", loop.Stats())
	}
}
