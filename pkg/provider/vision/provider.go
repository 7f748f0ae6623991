// Package vision defines the Classifier interface for facial emotion
// detection backends.
//
// A Classifier receives a single decoded video frame (JPEG/PNG bytes) and
// returns the dominant emotion with a confidence and the full per-emotion
// score distribution. The session coordinator invokes it for every accepted
// frame of a live interview, so implementations should be cheap to call or
// delegate to a remote inference server.
//
// Implementors must be safe for concurrent use.
package vision

import "context"

// Reading is the outcome of classifying one video frame.
type Reading struct {
	// Dominant is the highest-scoring emotion label (e.g., "happy",
	// "neutral", "nervous").
	Dominant string

	// Confidence is the score of the dominant emotion in [0, 1].
	Confidence float64

	// Scores maps every known emotion label to its score in [0, 1].
	Scores map[string]float64

	// FaceDetected reports whether a face was found in the frame. When
	// false the other fields carry no signal and callers should discard
	// the reading.
	FaceDetected bool
}

// Classifier classifies facial emotion in still frames.
type Classifier interface {
	// ClassifyFrame analyses the encoded image and returns a Reading.
	// A frame without a detectable face is not an error; it is reported
	// via Reading.FaceDetected.
	ClassifyFrame(ctx context.Context, image []byte) (Reading, error)
}
