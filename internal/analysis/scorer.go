package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/talentlens/talentlens/pkg/provider/embed"
)

// similarityThreshold is the minimum cosine similarity for a semantic match.
const similarityThreshold = 0.50

// exactMatchSimilarity is the artificial similarity assigned to exact
// lexical matches so they always outrank threshold-based semantic matches.
const exactMatchSimilarity = 0.95

// Assessment is the scored outcome for one indicator on one transcript.
type Assessment struct {
	// Score is the 0–100 relevance score.
	Score float64

	// Evidence is up to three of the highest-ranked segments joined by " | ".
	Evidence string

	// Reasoning explains the score in one or two sentences.
	Reasoning string
}

// greetingPatterns match segments that are purely salutation or introduction
// boilerplate. Only short segments are tested against them.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^hello`),
	regexp.MustCompile(`^hi `),
	regexp.MustCompile(`^hey `),
	regexp.MustCompile(`^good (morning|afternoon|evening)`),
	regexp.MustCompile(`^greetings`),
	regexp.MustCompile(`^my name is`),
	regexp.MustCompile(`^let me introduce`),
	regexp.MustCompile(`^allow me to introduce`),
	regexp.MustCompile(`^thank you$`),
	regexp.MustCompile(`^thanks for having me$`),
	regexp.MustCompile(`^dear `),
}

// themeElaborations enriches the semantic query for common indicator themes.
// Matching is a substring check against the lowercased indicator name.
var themeElaborations = map[string]string{
	"communication":       "communicating clearly, conveying ideas and information, active listening, speaking effectively, giving presentations",
	"leadership":          "leading a team, directing others, making decisions, coordinating a team, delegating tasks, mentoring",
	"problem solving":     "solving problems, finding solutions, analysing issues, critical thinking, finding a way forward",
	"teamwork":            "working together in a team, collaboration, group cooperation, sharing tasks, supporting colleagues",
	"adaptability":        "adapting to change, being flexible, adjusting oneself, being open to new things, learning quickly",
	"accountability":      "taking responsibility, owning outcomes, admitting mistakes, working with integrity, commitment",
	"results orientation": "focusing on targets, achieving goals, optimal work output, high productivity, efficiency",
	"initiative":          "being proactive, taking the first step on one's own, bringing new ideas, creativity",
	"collaboration":       "working across teams, sharing knowledge, synergy, coordinating between departments, networking",
}

// themeKeywords is the simpler keyword table used by the fallback path when
// no similarity engine is available.
var themeKeywords = map[string][]string{
	"communication":       {"communicate", "explained", "conveyed", "presentation", "discussed"},
	"leadership":          {"led the team", "leader", "directed the team", "coordinated", "delegated"},
	"problem solving":     {"solved the problem", "found a solution", "analysed the problem", "problem solving"},
	"teamwork":            {"worked together", "team collaboration", "cooperation", "teamwork"},
	"integrity":           {"honest", "responsible", "transparency", "work ethic"},
	"adaptability":        {"adapted to", "flexible about", "adjusted", "change"},
	"results orientation": {"reached the target", "work results", "performance", "productivity"},
	"service":             {"served", "service", "customer satisfaction", "customer", "client"},
}

// Scorer evaluates behavioral indicators against interview transcripts using
// hybrid scoring: exact lexical matches combined with embedding similarity.
// When no embeddings provider is configured (or an embedding call fails) it
// degrades to keyword-table matching.
//
// A Scorer is stateless apart from its collaborators and safe for concurrent
// use.
type Scorer struct {
	embedder embed.Provider
	logger   *slog.Logger
}

// NewScorer returns a Scorer. embedder may be nil, in which case every
// assessment uses the keyword fallback.
func NewScorer(embedder embed.Provider, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{embedder: embedder, logger: logger}
}

// ScoreIndicator computes the assessment for one indicator against the
// transcript. It never returns an error: failures degrade to the keyword
// fallback, and an empty transcript scores 0 with a "no evidence" rationale.
func (s *Scorer) ScoreIndicator(ctx context.Context, transcript, name, description string) Assessment {
	segments := SplitSentences(transcript)
	if len(segments) == 0 {
		return Assessment{
			Score:     0,
			Evidence:  "Transcript is empty or invalid.",
			Reasoning: fmt.Sprintf("Cannot assess %s because the transcript is empty.", name),
		}
	}

	if s.embedder == nil {
		return s.scoreWithKeywords(segments, name, description)
	}

	a, err := s.scoreWithSimilarity(ctx, segments, name, description)
	if err != nil {
		s.logger.Warn("semantic scoring failed, falling back to keywords",
			"indicator", name, "err", err)
		return s.scoreWithKeywords(segments, name, description)
	}
	return a
}

// nameVariants returns the indicator name plus light morphological variants
// used for the exact-match pass.
func nameVariants(name string) []string {
	lower := strings.ToLower(name)
	variants := []string{
		lower,
		strings.TrimSpace(strings.ReplaceAll(lower, "i", "")),
	}
	if len(lower) > 3 {
		variants = append(variants, lower[:len(lower)-1])
	}
	return variants
}

// exactMatches returns the segments containing any name variant of at least
// three characters, case-insensitively.
func exactMatches(segments []string, name string) []string {
	variants := nameVariants(name)

	var matches []string
	for _, seg := range segments {
		segLower := strings.ToLower(seg)
		for _, v := range variants {
			if len(v) >= 3 && strings.Contains(segLower, v) {
				matches = append(matches, seg)
				break
			}
		}
	}
	return matches
}

// filterGreetings drops short segments that are purely salutation
// boilerplate. If everything is filtered out, the original set is returned.
func filterGreetings(segments []string) []string {
	var kept []string
	for _, seg := range segments {
		lower := strings.ToLower(strings.TrimSpace(seg))
		pureIntro := false
		if len(lower) < 50 {
			for _, p := range greetingPatterns {
				if p.MatchString(lower) {
					pureIntro = true
					break
				}
			}
		}
		if !pureIntro {
			kept = append(kept, seg)
		}
	}
	if len(kept) == 0 {
		return segments
	}
	return kept
}

// enrichedQuery builds the semantic query from the indicator name and
// description plus any matching theme elaboration.
func enrichedQuery(name, description string) string {
	parts := []string{name}
	if description != "" {
		parts = append(parts, description)
	}
	nameLower := strings.ToLower(name)
	for theme, elaboration := range themeElaborations {
		if strings.Contains(nameLower, theme) {
			parts = append(parts, elaboration)
			break
		}
	}
	return strings.Join(parts, ". ") + ". Behaviour, actions, or experience demonstrating this trait."
}

type rankedMatch struct {
	similarity float64
	segment    string
}

func (s *Scorer) scoreWithSimilarity(ctx context.Context, segments []string, name, description string) (Assessment, error) {
	exact := exactMatches(segments, name)
	segments = filterGreetings(segments)

	queryVec, err := s.embedder.Embed(ctx, enrichedQuery(name, description))
	if err != nil {
		return Assessment{}, fmt.Errorf("embed query: %w", err)
	}
	segmentVecs, err := s.embedder.EmbedBatch(ctx, segments)
	if err != nil {
		return Assessment{}, fmt.Errorf("embed segments: %w", err)
	}
	if len(segmentVecs) != len(segments) {
		return Assessment{}, fmt.Errorf("expected %d segment embeddings, got %d", len(segments), len(segmentVecs))
	}

	// Exact matches first, with an artificial similarity that always
	// outranks threshold-based semantic matches.
	exactSet := make(map[string]struct{}, len(exact))
	var matches []rankedMatch
	for _, seg := range exact {
		exactSet[seg] = struct{}{}
		matches = append(matches, rankedMatch{similarity: exactMatchSimilarity, segment: seg})
	}
	for i, seg := range segments {
		if _, dup := exactSet[seg]; dup {
			continue
		}
		if sim := embed.CosineSimilarity(queryVec, segmentVecs[i]); sim > similarityThreshold {
			matches = append(matches, rankedMatch{similarity: sim, segment: seg})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})

	if len(matches) == 0 {
		return Assessment{
			Score:     0,
			Evidence:  "No relevant evidence found in the transcript.",
			Reasoning: fmt.Sprintf("No candidate statements related to %s were found.", name),
		}, nil
	}

	var simSum float64
	for _, m := range matches {
		simSum += m.similarity
	}
	avgSimilarity := simSum / float64(len(matches))

	// Quantity with diminishing returns, quality weighted more heavily.
	countScore := math.Min(50, 20+math.Log(float64(len(matches))+1)*15)
	similarityScore := (avgSimilarity-0.5)*100 + 30
	similarityScore = math.Max(30, math.Min(60, similarityScore))

	score := countScore + similarityScore
	score = math.Min(100, math.Max(0, score))
	if len(exact) > 0 {
		bonus := math.Min(15, float64(len(exact))*8)
		score = math.Min(100, score+bonus)
	}

	top := len(matches)
	if top > 3 {
		top = 3
	}
	evidence := make([]string, 0, top)
	for _, m := range matches[:top] {
		evidence = append(evidence, m.segment)
	}

	return Assessment{
		Score:     score,
		Evidence:  strings.Join(evidence, " | "),
		Reasoning: similarityReasoning(name, score, len(matches), avgSimilarity, len(exact)),
	}, nil
}

func similarityReasoning(name string, score float64, matchCount int, avgSimilarity float64, exactCount int) string {
	exactNote := ""
	if exactCount > 0 {
		exactNote = fmt.Sprintf(" Includes %d direct mentions.", exactCount)
	}

	detail := fmt.Sprintf("Found %d relevant statements with %.1f%% average relevance.%s",
		matchCount, avgSimilarity*100, exactNote)

	switch {
	case score >= 75:
		return fmt.Sprintf("The candidate demonstrates very clear %s. %s", name, detail)
	case score >= 55:
		return fmt.Sprintf("The candidate demonstrates fairly clear %s. %s", name, detail)
	case score >= 35:
		return fmt.Sprintf("The candidate demonstrates adequate %s. %s", name, detail)
	default:
		return fmt.Sprintf("%s was detected in the transcript. %s", name, detail)
	}
}

// scoreWithKeywords is the fallback when no similarity engine is available.
func (s *Scorer) scoreWithKeywords(segments []string, name, description string) Assessment {
	nameLower := strings.ToLower(name)
	descLower := strings.ToLower(description)

	var keywords []string
	for theme, words := range themeKeywords {
		if strings.Contains(nameLower, theme) || strings.Contains(descLower, theme) {
			keywords = append(keywords, words...)
		}
	}

	var matches []string
	for _, seg := range segments {
		segLower := strings.ToLower(seg)
		for _, kw := range keywords {
			if strings.Contains(segLower, kw) {
				matches = append(matches, strings.TrimSpace(seg))
				break
			}
		}
	}

	var score float64
	if len(matches) > 0 {
		score = math.Min(100, float64(len(matches))*25)
	}

	evidence := "No specific evidence found in the transcript."
	if len(matches) > 0 {
		top := len(matches)
		if top > 3 {
			top = 3
		}
		evidence = strings.Join(matches[:top], " | ")
	}

	var reasoning string
	switch {
	case score >= 75:
		reasoning = fmt.Sprintf("The candidate shows good %s (%d pieces of evidence found).", name, len(matches))
	case score >= 50:
		reasoning = fmt.Sprintf("The candidate shows sufficient %s (%d pieces of evidence found).", name, len(matches))
	default:
		reasoning = fmt.Sprintf("The candidate needs to improve %s (%d pieces of evidence found).", name, len(matches))
	}

	return Assessment{Score: score, Evidence: evidence, Reasoning: reasoning}
}
