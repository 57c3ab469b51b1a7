package prompts

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Request selects the prompt text for one generator invocation.
// Resolution order: Override > File > Base > Template. The chosen text is
// interpolated with Context, then Append is concatenated.
type Request struct {
	// Base is the configured template for the stage (may contain {key}
	// placeholders). When set it replaces the built-in Template.
	Base string
	// Override is a literal prompt that wins over everything else.
	Override string
	// File is a path to a prompt file.
	File string
	// Template is the name of the built-in fallback template
	// ("implement.md"), used when no Base is configured.
	Template string
	// Append is concatenated after the resolved text.
	Append string
	// Context supplies values for {key} interpolation.
	Context map[string]string
}

// Resolve produces the final prompt text.
func Resolve(req Request) (string, error) {
	text, err := choose(req)
	if err != nil {
		return "", err
	}

	text = Interpolate(text, req.Context)

	if req.Append != "" {
		text = strings.TrimRight(text, "\n") + "\n\n" + req.Append
	}
	return text, nil
}

func choose(req Request) (string, error) {
	if req.Override != "" {
		return req.Override, nil
	}
	if req.File != "" {
		data, err := os.ReadFile(req.File)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}
	if req.Base != "" {
		return req.Base, nil
	}
	if req.Template != "" {
		return Load(req.Template)
	}
	return "", nil
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Interpolate replaces {key} placeholders with values from ctx. Missing
// keys produce a warning and are left literal so the omission is visible
// in the rendered prompt.
func Interpolate(text string, ctx map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		if val, ok := ctx[key]; ok {
			return val
		}
		slog.Warn("prompt placeholder has no value", "key", key)
		return match
	})
}
