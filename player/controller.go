package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"player-piano/midi"
	"player-piano/timeline"
)

// Status is a snapshot of the current or last session.
type Status struct {
	Playing  bool                `json:"playing"`
	Song     string              `json:"song"`
	Frame    int                 `json:"frame"`
	Frames   int                 `json:"frames"`
	Progress float64             `json:"progress"` // 0-100
	Elapsed  time.Duration       `json:"elapsed_ns"`
	Duration time.Duration       `json:"duration_ns"`
	Sustain  bool                `json:"sustain"`
	Keys     [midi.NumKeys]uint8 `json:"keys"`
	Err      string              `json:"error,omitempty"`
}

// Controller owns a Player and allows one session at a time.
type Controller struct {
	player *Player

	mu      sync.RWMutex
	status  Status
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error

	// Notify listeners of updates
	UpdateChan chan struct{}
}

// NewController wraps p. It takes over p.OnFrame.
func NewController(p *Player) *Controller {
	c := &Controller{
		player:     p,
		UpdateChan: make(chan struct{}, 1),
	}
	p.OnFrame = c.onFrame
	return c
}

// Start begins playing tl in the background. It returns ErrBusy when a
// session is already running.
func (c *Controller) Start(ctx context.Context, song string, tl *timeline.Timeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.lastErr = nil
	c.status = Status{
		Playing:  true,
		Song:     song,
		Frames:   len(tl.Frames),
		Duration: tl.Duration(),
	}

	done := c.done
	go func() {
		defer cancel()
		err := c.player.Play(ctx, tl)

		c.mu.Lock()
		c.running = false
		c.lastErr = err
		c.status.Playing = false
		c.status.Keys = [midi.NumKeys]uint8{}
		c.status.Sustain = false
		if err != nil {
			c.status.Err = err.Error()
		} else {
			c.status.Progress = 100
		}
		close(done)
		c.mu.Unlock()
		c.notify()
	}()

	c.notify()
	return nil
}

// Play runs tl to completion on the calling goroutine's behalf.
func (c *Controller) Play(ctx context.Context, song string, tl *timeline.Timeline) error {
	if err := c.Start(ctx, song, tl); err != nil {
		return err
	}
	return c.Wait()
}

// Stop cancels the running session, if any.
func (c *Controller) Stop() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.running {
		c.cancel()
	}
}

// Wait blocks until the current session ends and returns its error.
// A session ended by Stop reports ErrStopped.
func (c *Controller) Wait() error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()

	if done == nil {
		return nil
	}
	<-done

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Playing reports whether a session is running.
func (c *Controller) Playing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Status returns a copy of the session status.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Stopped reports whether err only means the user stopped playback.
func Stopped(err error) bool {
	return errors.Is(err, ErrStopped)
}

func (c *Controller) onFrame(p Progress) {
	c.mu.Lock()
	c.status.Frame = p.Index
	c.status.Elapsed = p.Elapsed
	c.status.Keys = p.Frame.Drive
	c.status.Sustain = p.Frame.Sustain
	if p.Total > 0 {
		c.status.Progress = float64(p.Index+1) / float64(p.Total) * 100
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	select {
	case c.UpdateChan <- struct{}{}:
	default:
	}
}
