package cache

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzyCandidateLimit bounds how many recent rows one fuzzy probe scans.
const fuzzyCandidateLimit = 500

// GetFuzzy is a best-effort probe for near-duplicate lines, separate from
// Get, which never falls back to it. It scans recently used rows for the same
// language pair whose length is within the threshold band and returns the
// best Levenshtein similarity above threshold. Never required for
// correctness; a miss just means a backend call.
func (c *Cache) GetFuzzy(text, src, tgt string, threshold float64) (string, bool) {
	if threshold <= 0 || threshold > 1 {
		return "", false
	}
	normalized := collapseWhitespace(strings.ToLower(text))
	if len(normalized) < 3 {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	minLen := int(float64(len(text)) * threshold)
	maxLen := int(float64(len(text)) / threshold)

	rows, err := c.db.Query(`
		SELECT original_text, translated_text FROM cache
		WHERE source_lang = ? AND target_lang = ?
		  AND LENGTH(original_text) BETWEEN ? AND ?
		ORDER BY last_used DESC
		LIMIT ?
	`, src, tgt, minLen, maxLen, fuzzyCandidateLimit)
	if err != nil {
		return "", false
	}
	defer rows.Close()

	best := ""
	bestSim := threshold
	for rows.Next() {
		var original, translated string
		if err := rows.Scan(&original, &translated); err != nil {
			continue
		}
		sim := similarity(normalized, collapseWhitespace(strings.ToLower(original)))
		if sim >= bestSim {
			best, bestSim = translated, sim
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
