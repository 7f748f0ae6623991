// Package mock provides a test double for the asr.Transcriber interface.
//
// Use Transcriber to return a pre-canned transcription result without a live
// whisper-server and to verify which files were submitted for transcription.
package mock

import (
	"context"
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/asr"
)

// Compile-time assertion that Transcriber implements asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// Call records a single invocation of TranscribeFile.
type Call struct {
	// Ctx is the context passed to TranscribeFile.
	Ctx context.Context
	// Path is the file path passed to TranscribeFile.
	Path string
}

// Transcriber is a mock implementation of asr.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by TranscribeFile when Err is nil.
	Result asr.Result

	// Err, if non-nil, is returned as the error from TranscribeFile.
	Err error

	// Calls records every call to TranscribeFile in order.
	Calls []Call
}

// TranscribeFile records the call and returns Result, Err.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (asr.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, Call{Ctx: ctx, Path: path})
	if t.Err != nil {
		return asr.Result{}, t.Err
	}
	return t.Result, nil
}

// CallCount returns the number of recorded TranscribeFile calls.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
