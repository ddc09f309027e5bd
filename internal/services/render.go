package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/images"
	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	renderConcurrency = 2
	renderBurst       = 2
)

// FrameRenderer renders one frame image
type FrameRenderer interface {
	Render(ctx context.Context, frame images.FrameSpec) (*images.Image, error)
}

// RenderedFrame is a base64 encoded frame image
type RenderedFrame struct {
	Index    int    `json:"index"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// RenderService renders storyboard frames concurrently under a shared rate limit
type RenderService struct {
	renderer FrameRenderer
	limiter  *rate.Limiter
	recorder *metrics.Recorder
}

// NewRenderService creates a render service allowing perMinute renders per minute; zero disables pacing
func NewRenderService(renderer FrameRenderer, perMinute int, recorder *metrics.Recorder) *RenderService {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), renderBurst)
	}
	return &RenderService{
		renderer: renderer,
		limiter:  limiter,
		recorder: recorder,
	}
}

// RenderFrames renders frames in order. The first failure cancels the remaining renders.
func (s *RenderService) RenderFrames(ctx context.Context, frames []images.FrameSpec) ([]RenderedFrame, error) {
	startTime := time.Now()
	rendered := make([]RenderedFrame, len(frames))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(renderConcurrency)

	for i, frame := range frames {
		eg.Go(func() error {
			if err := s.limiter.Wait(egCtx); err != nil {
				return err
			}

			img, err := s.renderer.Render(egCtx, frame)
			if err != nil {
				return fmt.Errorf("frame %d render failed: %w", i, err)
			}

			rendered[i] = RenderedFrame{
				Index:    i,
				MIMEType: img.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			}
			return nil
		})
	}

	err := eg.Wait()
	duration := time.Since(startTime)
	if err != nil {
		s.recorder.RecordFrameRenders(ctx, 0, len(frames), duration)
		logger.Warn("Frame rendering failed", logger.Fields{"frames": len(frames), "error": err.Error()})
		return nil, err
	}

	s.recorder.RecordFrameRenders(ctx, len(frames), 0, duration)
	logger.Info("Frames rendered", logger.Fields{"frames": len(frames), "duration_ms": duration.Milliseconds()})
	return rendered, nil
}
