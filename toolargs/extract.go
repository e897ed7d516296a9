package toolargs

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ContentKey is the parameter that carries whole file contents.
// Its value is located by a dedicated scan since it routinely contains
// commas, equals signs and quotes.
const ContentKey = "new_content"

// Spec describes the parameters of one tool.
type Spec struct {
	// Params are the canonical parameter names.
	Params []string
	// Positional receives a bare, unkeyed value.
	Positional string
	// Defaults fill missing or nil parameters.
	Defaults map[string]any
	// Aliases maps alternative names to canonical ones.
	Aliases map[string]string
	// Bools are parameters interpreted as booleans.
	Bools []string
	// Flags maps bare words to boolean parameters they switch on (e.g. "pop").
	Flags map[string]string
}

func (s Spec) canonical(key string) string {
	if c, ok := s.Aliases[key]; ok {
		return c
	}
	return key
}

func (s Spec) knows(key string) bool {
	return slices.Contains(s.Params, s.canonical(key))
}

// Extract recovers the parameters of a tool call.
//
// Shapes are tried in order: a structured mapping, text holding a JSON object,
// text holding a new_content assignment, key=value pairs, a bare value.
// Empty input yields only the defaults.
// A panic during extraction yields Args holding only ErrorKey.
func Extract(spec Spec, raw Raw) (args Args) {
	defer func() {
		if r := recover(); r != nil {
			args = Args{ErrorKey: fmt.Sprintf("argument extraction failed: %v", r)}
		}
	}()
	if raw.Kind() == KindStructured {
		if s, ok := loneInput(raw.Fields()); ok {
			return spec.finish(spec.fromText(s))
		}
		return spec.finish(fromFields(raw.Fields()))
	}
	return spec.finish(spec.fromText(raw.Text()))
}

// loneInput recognizes {"input": "..."}, the wrapper some transports put
// around free text. Other keys may be present if they are blank.
func loneInput(m map[string]any) (string, bool) {
	s, ok := m["input"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	for k := range m {
		if k != "input" && Args(m).Present(k) {
			return "", false
		}
	}
	return s, true
}

var newContentRE = regexp.MustCompile(`\bnew_content\s*=`)

func (s Spec) fromText(text string) Args {
	text = strings.TrimSpace(text)
	if text == "" {
		return Args{}
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		m := map[string]any{}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&m); err == nil {
			if inner, ok := loneInput(m); ok {
				return s.fromText(inner)
			}
			return fromFields(m)
		}
	}
	if slices.Contains(s.Params, ContentKey) {
		if loc := newContentRE.FindStringIndex(text); loc != nil {
			return s.withContent(text, loc)
		}
	}
	if pairs, ok := s.pairs(text); ok {
		return pairs
	}
	return s.bare(text)
}

// withContent handles text containing "new_content =" at loc.
// Pairs before and after the content span are parsed as usual.
func (s Spec) withContent(text string, loc []int) Args {
	args := Args{}
	head := strings.TrimRight(text[:loc[0]], " \t\r\n,")
	rest := text[loc[1]:]

	content, tail, ok := scanContent(rest)
	if !ok {
		content = fallbackContent(rest)
		tail = ""
	}
	for _, part := range []string{head, strings.TrimLeft(tail, " \t\r\n,")} {
		if part == "" {
			continue
		}
		if kv, found := splitPairs(part); found {
			maps.Copy(args, kv)
		}
	}
	args[ContentKey] = content
	return args
}

// pairs parses text as key=value pairs. It reports false when no segment
// names a parameter of s, in which case text is a bare value.
func (s Spec) pairs(text string) (Args, bool) {
	kv, found := splitPairs(text)
	if !found {
		return nil, false
	}
	for k := range kv {
		if s.knows(k) {
			return kv, true
		}
	}
	return nil, false
}

func (s Spec) bare(text string) Args {
	v := unquote(text)
	if p, ok := s.Flags[strings.ToLower(v)]; ok {
		return Args{p: true}
	}
	if s.Positional == "" {
		return Args{}
	}
	return Args{s.Positional: noneToNil(v)}
}

func fromFields(m map[string]any) Args {
	args := make(Args, len(m))
	for k, v := range m {
		args[k] = normalize(v)
	}
	return args
}

func normalize(v any) any {
	switch v := v.(type) {
	case nil, string, bool:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// finish folds aliases, interprets booleans and applies defaults.
func (s Spec) finish(args Args) Args {
	for alias, canon := range s.Aliases {
		v, ok := args[alias]
		if !ok {
			continue
		}
		delete(args, alias)
		if !args.Present(canon) {
			args[canon] = v
		}
	}
	for _, b := range s.Bools {
		if str, ok := args[b].(string); ok {
			v, _ := parseBool(str)
			args[b] = v
		}
	}
	for k, v := range s.Defaults {
		if !args.Present(k) {
			args[k] = v
		}
	}
	return args
}
