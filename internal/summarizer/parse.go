package summarizer

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// parseOutput reads the summary and tags from a model answer. The JSON
// object may be fenced (```json or bare ```) or inline in prose. Runs of
// whitespace are collapsed first.
func parseOutput(output string) (Result, error) {
	candidates := jsonCandidates(strings.Join(strings.Fields(output), " "))
	if len(candidates) == 0 {
		return Result{}, errors.New("output has no JSON object")
	}

	var errs []error
	for _, candidate := range candidates {
		if !gjson.Valid(candidate) {
			errs = append(errs, errors.New("output JSON is invalid"))
			continue
		}

		parsed := gjson.Parse(candidate)
		if !parsed.IsObject() {
			errs = append(errs, errors.New("output JSON is not an object"))
			continue
		}

		return Result{
			Summary: strings.TrimSpace(parsed.Get("summary").String()),
			Tags:    parseTags(parsed.Get("tags")),
		}, nil
	}

	return Result{}, errors.Join(errs...)
}

// jsonCandidates returns the fenced block first, then the outermost {...}.
func jsonCandidates(output string) []string {
	var candidates []string

	if m := fencedBlockRe.FindStringSubmatch(output); len(m) == 2 {
		if block := strings.TrimSpace(m[1]); block != "" {
			candidates = append(candidates, block)
		}
	}

	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start >= 0 && end > start {
		if inline := output[start : end+1]; !slices.Contains(candidates, inline) {
			candidates = append(candidates, inline)
		}
	}

	return candidates
}

// parseTags accepts an array of strings or a comma separated string.
func parseTags(value gjson.Result) []string {
	var raw []string

	switch {
	case value.IsArray():
		for _, v := range value.Array() {
			raw = append(raw, v.String())
		}
	case value.Type == gjson.String:
		raw = strings.Split(value.String(), ",")
	}

	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, tag := range raw {
		tag = strings.Join(strings.Fields(tag), " ")
		tag = strings.TrimPrefix(tag, "#")
		if tag == "" {
			continue
		}

		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		tags = append(tags, tag)
	}

	return tags
}
