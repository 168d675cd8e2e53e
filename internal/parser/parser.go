// Package parser extracts titles, tags and date expressions from memo text.
// It backs the enrichment fallbacks when no language model is configured.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTag is returned by Tags when nothing usable is found.
const DefaultTag = "一般"

// UntitledTitle is returned by Title for text without a first sentence.
const UntitledTitle = "タイトルなし"

const (
	titleRunes = 30
	maxTags    = 5
)

var (
	tagRe         = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}][\p{L}\p{N}_/-]*)`)
	sentenceEndRe = regexp.MustCompile(`[。.!！?？\n]`)
	wordSepRe     = regexp.MustCompile(`[。、.!！?？\n]`)

	tomorrowHourRe = regexp.MustCompile(`明日.*?(\d{1,2})時`)
	todayHourRe    = regexp.MustCompile(`(?:今日.*?)?(\d{1,2})時`)
	monthDayRe     = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
)

// Title returns the first sentence of text, cut to 30 runes with a trailing
// ellipsis when longer.
func Title(text string) string {
	first := sentenceEndRe.Split(text, 2)[0]
	first = strings.TrimSpace(first)
	if first == "" {
		return UntitledTitle
	}
	if utf8.RuneCountInString(first) <= titleRunes {
		return first
	}
	return string([]rune(first)[:titleRunes]) + "..."
}

// Hashtags returns the deduplicated #tags of text in order of appearance.
func Hashtags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Tags returns up to five tags: explicit #tags first, then space separated
// words of 3 to 9 runes. Falls back to DefaultTag.
func Tags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if _, dup := seen[t]; dup || len(out) >= maxTags {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range Hashtags(text) {
		add(t)
	}
	for _, w := range strings.Split(wordSepRe.ReplaceAllString(text, " "), " ") {
		if strings.HasPrefix(w, "#") {
			continue
		}
		if n := utf8.RuneCountInString(w); n > 2 && n < 10 {
			add(w)
		}
	}

	if len(out) == 0 {
		return []string{DefaultTag}
	}
	return out
}

// DateTime is a date expression found in text.
type DateTime struct {
	Found    bool
	At       time.Time
	Original string
}

// ExtractDateTime resolves the first recognised date expression relative to
// now, in now's location. Recognised forms, in priority order: 明日…N時,
// [今日…]N時 and M月D日.
func ExtractDateTime(text string, now time.Time) DateTime {
	loc := now.Location()
	y, mo, d := now.Date()

	if m := tomorrowHourRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return DateTime{Found: true, At: time.Date(y, mo, d+1, hour, 0, 0, 0, loc), Original: m[0]}
	}
	if m := todayHourRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return DateTime{Found: true, At: time.Date(y, mo, d, hour, 0, 0, 0, loc), Original: m[0]}
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return DateTime{Found: true, At: time.Date(y, time.Month(month), day, 0, 0, 0, 0, loc), Original: m[0]}
	}
	return DateTime{}
}
