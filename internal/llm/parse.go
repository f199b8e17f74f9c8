package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a response contains no parseable JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON parses a model response that may wrap a JSON object in
// markdown fences or surrounding prose. It locates the first balanced
// top-level object and unmarshals it into v.
func ExtractJSON(response string, v any) error {
	content := strings.TrimSpace(response)
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	if start == -1 {
		return ErrNoJSON
	}

	depth := 0
	end := -1
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return ErrNoJSON
	}

	return json.Unmarshal([]byte(content[start:end]), v)
}

// codeFences in descending specificity; the specific ones keep the content
// after the fence, the bare one keeps the first fenced block.
var codeFences = []string{"```hcl", "```terraform", "```"}

// StripCodeFences removes markdown code fences from generated code,
// returning the inner content.
func StripCodeFences(code string) string {
	code = strings.TrimSpace(code)
	for _, fence := range codeFences {
		if !strings.Contains(code, fence) {
			continue
		}
		parts := strings.SplitN(code, fence, 2)
		if len(parts) < 2 {
			continue
		}
		inner := parts[1]
		if idx := strings.Index(inner, "```"); idx != -1 {
			inner = inner[:idx]
		}
		return strings.TrimSpace(inner)
	}
	return code
}

var (
	resourcePattern = regexp.MustCompile(`resource\s+"([^"]+)"\s+"([^"]+)"`)
	dataPattern     = regexp.MustCompile(`data\s+"([^"]+)"\s+"([^"]+)"`)
)

// ExtractResources lists the resource and data-source identifiers declared
// in a piece of HCL, as type.name (data sources prefixed "data."). Used to
// give the generator a running inventory of what earlier artifacts defined.
func ExtractResources(code string) []string {
	var out []string
	for _, m := range resourcePattern.FindAllStringSubmatch(code, -1) {
		out = append(out, m[1]+"."+m[2])
	}
	for _, m := range dataPattern.FindAllStringSubmatch(code, -1) {
		out = append(out, "data."+m[1]+"."+m[2])
	}
	return out
}
