// Package textsteps holds the text cleaning actions of the worker.
package textsteps

import (
	"strings"
	"unicode"

	"github.com/askiada/go-pipeline-services/pkg/registry"
)

const (
	NameStrip               = "strip"
	NameNormalizeWhitespace = "normalize_whitespace"
	NameToLower             = "to_lower"
	NameAppendMarker        = "append_marker"
)

func Strip(value string) string {
	return strings.TrimSpace(value)
}

// NormalizeWhitespace collapses every run of white space into a single space and trims
// both ends.
func NormalizeWhitespace(value string) string {
	var (
		builder strings.Builder
		pending bool
	)

	builder.Grow(len(value))

	for _, r := range value {
		if unicode.IsSpace(r) {
			pending = builder.Len() > 0
			continue
		}

		if pending {
			builder.WriteByte(' ')

			pending = false
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func ToLower(value string) string {
	return strings.ToLower(value)
}

// AppendMarker appends "|", it makes the end of a value visible in logs.
func AppendMarker(value string) string {
	return value + "|"
}

// Register adds every text action to reg.
func Register(reg *registry.Registry[string]) error {
	for name, fn := range map[string]func(string) string{
		NameStrip:               Strip,
		NameNormalizeWhitespace: NormalizeWhitespace,
		NameToLower:             ToLower,
		NameAppendMarker:        AppendMarker,
	} {
		err := reg.RegisterUnary(name, fn)
		if err != nil {
			return err
		}
	}

	return nil
}
