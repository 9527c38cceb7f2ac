// Package structured extracts typed values from model replies that are
// expected to be JSON but frequently are not.
package structured

import (
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"labourlaw-rag/internal/models"
)

var (
	ErrNoJSON   = errors.New("no JSON object in model output")
	thinkRe     = regexp.MustCompile(models.ThinkTag)
	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// Parser turns raw model text into T. Parse never fails: any problem
// yields Default.
type Parser[T any] struct {
	Name    string
	Default T
	Extract func(gjson.Result) (T, error)
}

// Parse returns the extracted value, or Default when the reply is not a JSON
// object or Extract rejects it.
func (p Parser[T]) Parse(raw string) T {
	v, err := p.TryParse(raw)
	if err != nil {
		log.Warn().Err(err).Str("parser", p.Name).Str("raw", truncate(raw, 200)).Msg("Falling back to default")
		return p.Default
	}
	return v
}

// TryParse is Parse with the failure reported instead of swallowed.
func (p Parser[T]) TryParse(raw string) (T, error) {
	obj, ok := ExtractObject(raw)
	if !ok {
		return p.Default, ErrNoJSON
	}
	v, err := p.Extract(gjson.Parse(obj))
	if err != nil {
		return p.Default, err
	}
	return v, nil
}

// ExtractObject finds the JSON object in a model reply, tolerating reasoning
// tags, markdown code fences and prose around the object.
func ExtractObject(raw string) (string, bool) {
	s := strings.TrimSpace(thinkRe.ReplaceAllString(raw, ""))
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if gjson.Valid(s) && strings.HasPrefix(s, "{") {
		return s, true
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return "", false
	}
	return s, true
}

// Strings reads a JSON array of strings at path, trimming blanks. Non-string
// entries are skipped.
func Strings(r gjson.Result, path string) ([]string, error) {
	v := r.Get(path)
	if !v.Exists() {
		return nil, errors.New("missing field " + path)
	}
	if !v.IsArray() {
		return nil, errors.New("field " + path + " is not an array")
	}
	var out []string
	for _, item := range v.Array() {
		if item.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
