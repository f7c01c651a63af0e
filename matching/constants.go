package matching

// Matching policy constants. The thresholds are tunable policy, not
// algorithm: the short-circuit threshold in particular can be overridden
// per engine via WithPatternShortCircuitThreshold or configuration.
const (
	// PatternMatchConfidence is assigned to any trigger-pattern hit.
	// Pattern hits are near-deterministic signals, so they sit above the
	// short-circuit threshold but below the keyword confidence cap.
	PatternMatchConfidence = 0.9

	// KeywordConfidenceCap bounds keyword confidence short of certainty
	// while still letting a heavy keyword overlap outrank a pattern hit.
	KeywordConfidenceCap = 0.95

	// KeywordConfidenceFloor is added to any nonzero keyword overlap so a
	// single strong keyword hit is taken seriously on short queries.
	KeywordConfidenceFloor = 0.3

	// DefaultPatternShortCircuitThreshold is the keyword confidence at or
	// above which the pattern matcher is skipped. Pattern matching scans
	// every enabled capability's full pattern list, so it only runs when
	// the cheap keyword signal is weak.
	DefaultPatternShortCircuitThreshold = 0.7

	// DefaultKnowledgeResultLimit caps knowledge snippets per match.
	DefaultKnowledgeResultLimit = 3

	// DefaultKnowledgeSimilarityThreshold drops weakly-related snippets.
	DefaultKnowledgeSimilarityThreshold = 0.5

	// DefaultKnowledgeCategory is assigned to snippets whose source
	// carries no category metadata.
	DefaultKnowledgeCategory = "general"

	// minTokenLength: tokens this long or shorter are treated as noise.
	minTokenLength = 2

	// patternCacheSize bounds the compiled-regex LRU cache.
	patternCacheSize = 512
)
