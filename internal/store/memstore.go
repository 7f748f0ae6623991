package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talentlens/talentlens/internal/analysis"
	"github.com/talentlens/talentlens/pkg/provider/embed"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It is
// suitable for tests and for running the server without a database.
type MemStore struct {
	mu sync.RWMutex

	nextID      int64
	interviews  map[int64]Interview
	indicators  map[int64][]Indicator
	assessments map[int64][]Assessment
	scores      map[int64]ScoreRecord
	segments    map[int64][]TranscriptSegment
	entries     map[int64][]TranscriptEntry
	emotions    map[int64][]EmotionLog
	weights     *analysis.Weights
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:      1,
		interviews:  make(map[int64]Interview),
		indicators:  make(map[int64][]Indicator),
		assessments: make(map[int64][]Assessment),
		scores:      make(map[int64]ScoreRecord),
		segments:    make(map[int64][]TranscriptSegment),
		entries:     make(map[int64][]TranscriptEntry),
		emotions:    make(map[int64][]EmotionLog),
	}
}

func (s *MemStore) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// CreateInterview implements [InterviewStore.CreateInterview].
func (s *MemStore) CreateInterview(ctx context.Context, candidateName, position string) (Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv := Interview{
		ID:            s.allocID(),
		CandidateName: candidateName,
		Position:      position,
		Status:        StatusRecording,
		CreatedAt:     time.Now(),
	}
	s.interviews[iv.ID] = iv
	return iv, nil
}

// GetInterview implements [InterviewStore.GetInterview].
func (s *MemStore) GetInterview(ctx context.Context, id int64) (Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iv, ok := s.interviews[id]
	if !ok {
		return Interview{}, ErrNotFound
	}
	return iv, nil
}

func (s *MemStore) updateInterview(id int64, fn func(*Interview)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return ErrNotFound
	}
	fn(&iv)
	s.interviews[id] = iv
	return nil
}

// SetStatus implements [InterviewStore.SetStatus].
func (s *MemStore) SetStatus(ctx context.Context, id int64, status Status) error {
	return s.updateInterview(id, func(iv *Interview) { iv.Status = status })
}

// SetAudioPath implements [InterviewStore.SetAudioPath].
func (s *MemStore) SetAudioPath(ctx context.Context, id int64, path string) error {
	return s.updateInterview(id, func(iv *Interview) { iv.AudioPath = path })
}

// SaveTranscript implements [InterviewStore.SaveTranscript].
func (s *MemStore) SaveTranscript(ctx context.Context, id int64, text string, confidence float64) error {
	return s.updateInterview(id, func(iv *Interview) {
		iv.Transcript = text
		iv.TranscriptConfidence = confidence
	})
}

// SetProcessedAt implements [InterviewStore.SetProcessedAt].
func (s *MemStore) SetProcessedAt(ctx context.Context, id int64, at time.Time) error {
	return s.updateInterview(id, func(iv *Interview) { iv.ProcessedAt = &at })
}

// AddIndicator implements [IndicatorStore.AddIndicator].
func (s *MemStore) AddIndicator(ctx context.Context, ind Indicator) (Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.interviews[ind.InterviewID]; !ok {
		return Indicator{}, ErrNotFound
	}
	ind.ID = s.allocID()
	s.indicators[ind.InterviewID] = append(s.indicators[ind.InterviewID], ind)
	return ind, nil
}

// ListIndicators implements [IndicatorStore.ListIndicators].
func (s *MemStore) ListIndicators(ctx context.Context, interviewID int64) ([]Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Indicator, len(s.indicators[interviewID]))
	copy(out, s.indicators[interviewID])
	return out, nil
}

// DeleteAssessments implements [AssessmentStore.DeleteAssessments].
func (s *MemStore) DeleteAssessments(ctx context.Context, interviewID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assessments, interviewID)
	return nil
}

// InsertAssessment implements [AssessmentStore.InsertAssessment].
func (s *MemStore) InsertAssessment(ctx context.Context, a Assessment) (Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.allocID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.assessments[a.InterviewID] = append(s.assessments[a.InterviewID], a)
	return a, nil
}

// ListAssessments implements [AssessmentStore.ListAssessments].
func (s *MemStore) ListAssessments(ctx context.Context, interviewID int64) ([]Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Assessment, len(s.assessments[interviewID]))
	copy(out, s.assessments[interviewID])
	return out, nil
}

// SetManualScore implements [AssessmentStore.SetManualScore].
func (s *MemStore) SetManualScore(ctx context.Context, assessmentID int64, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ivID, list := range s.assessments {
		for i := range list {
			if list[i].ID == assessmentID {
				list[i].ManualScore = score
				s.assessments[ivID] = list
				return nil
			}
		}
	}
	return ErrNotFound
}

// UpsertScoreRecord implements [ScoreStore.UpsertScoreRecord].
func (s *MemStore) UpsertScoreRecord(ctx context.Context, rec ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.scores[rec.InterviewID] = rec
	return nil
}

// GetScoreRecord implements [ScoreStore.GetScoreRecord].
func (s *MemStore) GetScoreRecord(ctx context.Context, interviewID int64) (ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.scores[interviewID]
	if !ok {
		return ScoreRecord{}, ErrNotFound
	}
	return rec, nil
}

// DeleteSegments implements [SegmentStore.DeleteSegments].
func (s *MemStore) DeleteSegments(ctx context.Context, interviewID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.segments, interviewID)
	return nil
}

// InsertSegment implements [SegmentStore.InsertSegment].
func (s *MemStore) InsertSegment(ctx context.Context, seg TranscriptSegment) (TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg.ID = s.allocID()
	s.segments[seg.InterviewID] = append(s.segments[seg.InterviewID], seg)
	return seg, nil
}

// ListSegments implements [SegmentStore.ListSegments].
func (s *MemStore) ListSegments(ctx context.Context, interviewID int64) ([]TranscriptSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TranscriptSegment, len(s.segments[interviewID]))
	copy(out, s.segments[interviewID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartSec < out[j].StartSec })
	return out, nil
}

// SearchSegments implements [SegmentStore.SearchSegments] using in-process
// cosine similarity.
func (s *MemStore) SearchSegments(ctx context.Context, interviewID int64, embedding []float32, topK int) ([]SegmentMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []SegmentMatch{}
	for _, seg := range s.segments[interviewID] {
		if len(seg.Embedding) == 0 {
			continue
		}
		sim := embed.CosineSimilarity(embedding, seg.Embedding)
		matches = append(matches, SegmentMatch{Segment: seg, Distance: 1 - sim})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// SaveTranscriptEntry implements [LiveStore.SaveTranscriptEntry].
func (s *MemStore) SaveTranscriptEntry(ctx context.Context, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.InterviewID] = append(s.entries[entry.InterviewID], entry)
	return nil
}

// ListTranscriptEntries implements [LiveStore.ListTranscriptEntries].
func (s *MemStore) ListTranscriptEntries(ctx context.Context, interviewID int64) ([]TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TranscriptEntry, len(s.entries[interviewID]))
	copy(out, s.entries[interviewID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// SaveEmotionLog implements [LiveStore.SaveEmotionLog].
func (s *MemStore) SaveEmotionLog(ctx context.Context, log EmotionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emotions[log.InterviewID] = append(s.emotions[log.InterviewID], log)
	return nil
}

// ListEmotionLogs implements [LiveStore.ListEmotionLogs].
func (s *MemStore) ListEmotionLogs(ctx context.Context, interviewID int64) ([]EmotionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EmotionLog, len(s.emotions[interviewID]))
	copy(out, s.emotions[interviewID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// GetScoringWeights implements [SettingsStore.GetScoringWeights].
func (s *MemStore) GetScoringWeights(ctx context.Context) (analysis.Weights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.weights == nil {
		return analysis.DefaultWeights, nil
	}
	return *s.weights, nil
}

// SetScoringWeights implements [SettingsStore.SetScoringWeights].
func (s *MemStore) SetScoringWeights(ctx context.Context, w analysis.Weights) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weights = &w
	return nil
}
