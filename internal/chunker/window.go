package chunker

import "strings"

// lineWindow is a contiguous, 1-based inclusive line span.
type lineWindow struct {
	Start   int
	End     int
	Content string
}

// slidingWindowLines splits lines into token-bounded windows of at most
// maxTokens, with overlapTokens of trailing content repeated at the
// start of the next window. Used both as the generic "sliding window"
// strategy and as the within-unit fallback when a semantic chunk
// exceeds MaxChunkTokens.
func slidingWindowLines(lines []string, maxTokens, overlapTokens int, countFn func(string) int) []lineWindow {
	if len(lines) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = 1
	}

	var windows []lineWindow
	start := 0
	for start < len(lines) {
		end := start
		for end < len(lines) {
			// Measure the joined window: summing per-line estimates rounds
			// each line down and undercounts the window's real size.
			if end > start && countFn(strings.Join(lines[start:end+1], "\n")) > maxTokens {
				break
			}
			end++
		}
		if end == start {
			end = start + 1 // always make progress on an oversized single line
		}
		windows = append(windows, lineWindow{
			Start:   start + 1,
			End:     end,
			Content: strings.Join(lines[start:end], "\n"),
		})

		if end >= len(lines) {
			break
		}

		// Back up by overlapTokens worth of trailing lines for the next window.
		overlapStart := end
		overlapAccum := 0
		for overlapStart > start && overlapAccum < overlapTokens {
			overlapStart--
			overlapAccum += countFn(lines[overlapStart])
		}
		if overlapStart <= start {
			// guarantee forward progress even with large overlap configs
			start = end
		} else {
			start = overlapStart
		}
	}
	return windows
}
