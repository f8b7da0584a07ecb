package audit

import (
	"fmt"
	"regexp"
)

// SanitizeConfig mirrors spec §4.8's audit.{sanitizePatterns, redactValue,
// maxInputSize, maxOutputSize} settings. Grounded on the teradata-labs-loom
// pack repo's observability package (hawk_privacy_test.go's EMAIL/PHONE/
// SSN/CARD regex-redaction pattern), generalized from fixed PII regexes
// onto spec §4.8's configurable key-name pattern list (default
// "password|apiKey|token|secret") applied to map keys rather than to
// message bodies by content-sniffing.
type SanitizeConfig struct {
	Patterns      []*regexp.Regexp
	RedactValue   string
	MaxInputSize  int
	MaxOutputSize int
}

// DefaultSanitizeConfig matches spec §4.8's default sanitizePatterns and a
// generous but bounded truncation size.
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{
		Patterns:      []*regexp.Regexp{regexp.MustCompile(`(?i)password|apikey|token|secret`)},
		RedactValue:   "[REDACTED]",
		MaxInputSize:  8192,
		MaxOutputSize: 8192,
	}
}

func (c SanitizeConfig) keyMatches(key string) bool {
	for _, p := range c.Patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (c SanitizeConfig) truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}

// sanitizeValue recursively redacts map keys matching cfg.Patterns and
// truncates string leaves at limit, the way hawk_privacy_test.go's
// tracer.redact walks a span's Attributes map.
func (c SanitizeConfig) sanitizeValue(v any, limit int) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			if c.keyMatches(k) {
				out[k] = c.RedactValue
				continue
			}
			out[k] = c.sanitizeValue(vv, limit)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = c.sanitizeValue(vv, limit)
		}
		return out
	case string:
		return c.truncate(val, limit)
	case fmt.Stringer:
		return c.truncate(val.String(), limit)
	default:
		return val
	}
}

// Sanitize returns a copy of span with Input, Output, and Metadata
// sanitized per cfg, per spec §4.8: "before persisting, every input/
// output/metadata value has keys matching sanitizePatterns... replaced
// with '[REDACTED]'; string bodies are truncated at maxInputSize/
// maxOutputSize."
func Sanitize(span *Span, cfg SanitizeConfig) *Span {
	out := *span
	out.Input = cfg.sanitizeValue(span.Input, cfg.MaxInputSize)
	out.Output = cfg.sanitizeValue(span.Output, cfg.MaxOutputSize)
	if span.Metadata != nil {
		sanitizedMeta := cfg.sanitizeValue(span.Metadata, cfg.MaxOutputSize)
		if m, ok := sanitizedMeta.(map[string]any); ok {
			out.Metadata = m
		}
	}
	return &out
}
