package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// StripMode controls how an unclosed <think> tag is handled.
type StripMode int

const (
	StripStrict StripMode = iota
	StripPreserve
)

// TrimMode controls whitespace trimming of the stripped result.
type TrimMode int

const (
	TrimBoth TrimMode = iota
	TrimStart
	TrimNone
)

type StripOption func(*stripConfig)

type stripConfig struct {
	mode StripMode
	trim TrimMode
}

func WithStripMode(m StripMode) StripOption { return func(c *stripConfig) { c.mode = m } }
func WithTrimMode(t TrimMode) StripOption   { return func(c *stripConfig) { c.trim = t } }

var (
	quickTagRe    = regexp.MustCompile(`(?i)<\s*/?\s*(?:think(?:ing)?|thought|final)\b`)
	finalTagRe    = regexp.MustCompile(`(?i)<\s*/?\s*final\b[^<>]*>`)
	thinkingTagRe = regexp.MustCompile(`(?i)<\s*(/?)\s*(?:think(?:ing)?|thought)\b[^<>]*>`)
)

type codeRegion struct{ start, end int }

// findCodeRegions locates fenced (``` / ~~~) and inline code spans so
// tags inside them are left untouched — a model might legitimately
// print "<thinking>" as an example inside a code block.
func findCodeRegions(text string) []codeRegion {
	var regions []codeRegion
	regions = append(regions, findFencedBlocks(text, "```")...)
	regions = append(regions, findFencedBlocks(text, "~~~")...)

	inlineRe := regexp.MustCompile("`+[^`]+`+")
	for _, m := range inlineRe.FindAllStringIndex(text, -1) {
		inside := false
		for _, r := range regions {
			if m[0] >= r.start && m[1] <= r.end {
				inside = true
				break
			}
		}
		if !inside {
			regions = append(regions, codeRegion{m[0], m[1]})
		}
	}
	return regions
}

func findFencedBlocks(text, fence string) []codeRegion {
	var regions []codeRegion
	offset := 0
	for offset < len(text) {
		idx := strings.Index(text[offset:], fence)
		if idx < 0 {
			break
		}
		start := offset + idx
		if start > 0 && text[start-1] != '\n' {
			offset = start + len(fence)
			continue
		}
		lineEnd := strings.Index(text[start:], "\n")
		if lineEnd < 0 {
			break
		}
		searchFrom := start + lineEnd + 1
		closeIdx := -1
		pos := searchFrom
		for pos < len(text) {
			ci := strings.Index(text[pos:], fence)
			if ci < 0 {
				break
			}
			cand := pos + ci
			if cand == 0 || text[cand-1] == '\n' {
				closeIdx = cand
				break
			}
			pos = cand + len(fence)
		}
		if closeIdx >= 0 {
			end := closeIdx + len(fence)
			if nl := strings.Index(text[end:], "\n"); nl >= 0 {
				end += nl + 1
			} else {
				end = len(text)
			}
			regions = append(regions, codeRegion{start, end})
			offset = end
		} else {
			regions = append(regions, codeRegion{start, len(text)})
			break
		}
	}
	return regions
}

func isInsideCode(pos int, regions []codeRegion) bool {
	for _, r := range regions {
		if pos >= r.start && pos < r.end {
			return true
		}
	}
	return false
}

// StripReasoningTags removes <think>/<thinking>/<thought> and <final>
// markup from model output before it reaches the user, so internal
// deliberation never leaks. Tags inside code fences are left alone; a
// code sample discussing these tags is content, not deliberation.
func StripReasoningTags(text string, opts ...StripOption) string {
	if text == "" {
		return text
	}
	if !quickTagRe.MatchString(text) {
		return text
	}

	cfg := &stripConfig{mode: StripStrict, trim: TrimBoth}
	for _, o := range opts {
		o(cfg)
	}

	cleaned := text
	if finalTagRe.MatchString(cleaned) {
		preRegions := findCodeRegions(cleaned)
		matches := finalTagRe.FindAllStringIndex(cleaned, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			if !isInsideCode(m[0], preRegions) {
				cleaned = cleaned[:m[0]] + cleaned[m[1]:]
			}
		}
	}

	codeRegions := findCodeRegions(cleaned)
	allMatches := thinkingTagRe.FindAllStringSubmatchIndex(cleaned, -1)

	var result strings.Builder
	result.Grow(len(cleaned))
	lastIndex := 0
	inThinking := false

	for _, match := range allMatches {
		idx, matchEnd := match[0], match[1]
		isClose := match[2] != match[3]
		if isInsideCode(idx, codeRegions) {
			continue
		}
		if !inThinking {
			result.WriteString(cleaned[lastIndex:idx])
			if !isClose {
				inThinking = true
			}
		} else if isClose {
			inThinking = false
		}
		lastIndex = matchEnd
	}

	if !inThinking || cfg.mode == StripPreserve {
		result.WriteString(cleaned[lastIndex:])
	}

	return applyTrim(result.String(), cfg.trim)
}

func applyTrim(s string, mode TrimMode) string {
	switch mode {
	case TrimNone:
		return s
	case TrimStart:
		return trimLeftUTF8(s)
	default:
		return strings.TrimSpace(s)
	}
}

func trimLeftUTF8(s string) string {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			break
		}
		i += size
	}
	return s[i:]
}
