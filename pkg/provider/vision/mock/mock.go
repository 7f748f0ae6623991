// Package mock provides a test double for the vision.Classifier interface.
//
// Use Classifier to script a sequence of readings without a live inference
// server and to verify how many frames were submitted.
package mock

import (
	"context"
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/vision"
)

// Compile-time assertion that Classifier implements vision.Classifier.
var _ vision.Classifier = (*Classifier)(nil)

// Classifier is a mock implementation of vision.Classifier.
//
// When Queue is non-empty, readings are returned in order, with the last one
// repeated once the queue is exhausted. Otherwise Reading is returned for
// every call.
type Classifier struct {
	mu sync.Mutex

	// Reading is returned when Queue is empty.
	Reading vision.Reading

	// Queue is an ordered sequence of readings to return.
	Queue []vision.Reading

	// Err, if non-nil, is returned as the error from ClassifyFrame.
	Err error

	// Frames records a copy of every submitted image.
	Frames [][]byte

	next int
}

// ClassifyFrame records the frame and returns the next scripted reading.
func (c *Classifier) ClassifyFrame(_ context.Context, image []byte) (vision.Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := make([]byte, len(image))
	copy(frame, image)
	c.Frames = append(c.Frames, frame)

	if c.Err != nil {
		return vision.Reading{}, c.Err
	}
	if len(c.Queue) == 0 {
		return c.Reading, nil
	}
	if c.next >= len(c.Queue) {
		return c.Queue[len(c.Queue)-1], nil
	}
	r := c.Queue[c.next]
	c.next++
	return r, nil
}

// FrameCount returns the number of frames submitted so far.
func (c *Classifier) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Frames)
}
