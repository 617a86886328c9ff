package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = lookup(mdV2SpecialChars)

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2URLLookup = lookup(`)\`)

// EscapeV2 escapes text for Telegram MarkdownV2.
func EscapeV2(input string) string {
	return escape(input, &mdV2Lookup)
}

// EscapeV2URL escapes the URL part of an inline link, (...) in [text](...).
func EscapeV2URL(input string) string {
	return escape(input, &mdV2URLLookup)
}

func escape(input string, table *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if table[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if table[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func lookup(chars string) [256]bool {
	var m [256]bool
	for i := range len(chars) {
		m[chars[i]] = true
	}
	return m
}

//nolint:gochecknoglobals // Replacer is safe for concurrent use.
var slackReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeSlack escapes the control characters of Slack mrkdwn text.
func EscapeSlack(input string) string {
	return slackReplacer.Replace(input)
}

// Truncate cuts input to at most maxRunes runes, ending with an ellipsis when
// something was dropped.
func Truncate(input string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(input) <= maxRunes {
		return input
	}

	runes := []rune(input)
	if maxRunes == 1 {
		return "…"
	}

	return strings.TrimRight(string(runes[:maxRunes-1]), " \n\t") + "…"
}
