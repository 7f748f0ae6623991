package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// Recorder captures a live interview's audio into a mono 16-bit PCM WAV file.
//
// The file is created by Start with a placeholder header; the RIFF and data
// chunk sizes are patched when Stop finalises the recording. A Recorder is
// owned by a single session and is not safe for concurrent use; the session
// coordinator serialises all calls.
type Recorder struct {
	interviewID int64
	dir         string
	sampleRate  int

	f         *os.File
	path      string
	dataBytes int
}

// NewRecorder returns a Recorder that will write into dir. The file itself is
// not created until Start is called. sampleRate defaults to 16000 when zero.
func NewRecorder(dir string, interviewID int64, sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Recorder{
		interviewID: interviewID,
		dir:         dir,
		sampleRate:  sampleRate,
	}
}

// Start creates the output file "interview_<id>_<timestamp>.wav" under the
// recorder's directory and writes a placeholder WAV header. Calling Start on
// an already-started recorder is a no-op.
//
// A session remains usable when Start fails: WriteChunk becomes a no-op and
// Stop reports no recording.
func (r *Recorder) Start() error {
	if r.f != nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("audio: create recording dir: %w", err)
	}

	name := fmt.Sprintf("interview_%d_%s.wav", r.interviewID, time.Now().Format("20060102_150405"))
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}
	if _, err := f.Write(wavHeader(r.sampleRate, 1, 0)); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("audio: write wav header: %w", err)
	}

	r.f = f
	r.path = path
	r.dataBytes = 0
	return nil
}

// Started reports whether the output file has been created.
func (r *Recorder) Started() bool { return r.f != nil }

// Path returns the output file path once Start has succeeded, "" before.
func (r *Recorder) Path() string { return r.path }

// WriteChunk appends normalized float32 samples as PCM16 to the recording.
// It is a silent no-op when the recorder was never started.
func (r *Recorder) WriteChunk(samples []float32) error {
	if r.f == nil || len(samples) == 0 {
		return nil
	}
	pcm := EncodePCM16(samples)
	n, err := r.f.Write(pcm)
	r.dataBytes += n
	if err != nil {
		return fmt.Errorf("audio: write chunk: %w", err)
	}
	return nil
}

// Stop patches the WAV header with the final sizes and closes the file.
// It returns the absolute path of the recording, or "" when nothing was
// captured (the empty file is removed in that case). Stop on a recorder that
// never started returns ("", nil).
func (r *Recorder) Stop() (string, error) {
	if r.f == nil {
		return "", nil
	}
	f := r.f
	r.f = nil

	if _, err := f.WriteAt(wavHeader(r.sampleRate, 1, r.dataBytes), 0); err != nil {
		f.Close()
		return "", fmt.Errorf("audio: finalise wav header: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("audio: close recording: %w", err)
	}

	if r.dataBytes == 0 {
		os.Remove(r.path)
		return "", nil
	}

	abs, err := filepath.Abs(r.path)
	if err != nil {
		return r.path, nil
	}
	return abs, nil
}

// wavHeader builds a 44-byte RIFF/WAV header for 16-bit PCM data of the given
// size. dataSize may be zero for a placeholder header that is patched later.
func wavHeader(sampleRate, channels, dataSize int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, wavHeaderSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf
}
