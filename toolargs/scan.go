package toolargs

import (
	"regexp"
	"strings"
)

// commaSentinel stands in for commas inside quoted values while a text is split on commas.
const commaSentinel = "\x00"

var (
	identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// After a closing content quote only a further assignment or the end may follow.
	contentEndRE = regexp.MustCompile(`^,\s*([A-Za-z_][A-Za-z0-9_]*\s*=|$)`)
)

// splitPairs parses "k1='v1', k2=v2". A segment without an identifier key
// continues the previous value, so unquoted values keep their commas.
// It reports false when no segment has an identifier key.
func splitPairs(text string) (Args, bool) {
	var keys, vals []string
	for _, seg := range strings.Split(maskQuotedCommas(text), ",") {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		k = strings.TrimSpace(k)
		if ok && identRE.MatchString(k) {
			keys = append(keys, k)
			vals = append(vals, v)
			continue
		}
		if len(vals) > 0 {
			vals[len(vals)-1] += "," + seg
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	args := make(Args, len(keys))
	for i, k := range keys {
		v := unquote(strings.TrimSpace(vals[i]))
		args[k] = noneToNil(strings.ReplaceAll(v, commaSentinel, ","))
	}
	return args, true
}

// maskQuotedCommas replaces the commas of every quoted value with commaSentinel.
// A quote opens a value only right after '=', and closes it only when
// followed by a comma or the end of text; an unmatched quote is literal.
func maskQuotedCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	expectValue := false
	for i := 0; i < len(s); {
		c := s[i]
		if expectValue && (c == ' ' || c == '\t') {
			b.WriteByte(c)
			i++
			continue
		}
		if expectValue && isQuote(c) {
			if end := closingQuote(s, i); end > 0 {
				b.WriteString(strings.ReplaceAll(s[i:end+1], ",", commaSentinel))
				i = end + 1
				expectValue = false
				continue
			}
		}
		expectValue = c == '='
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func closingQuote(s string, open int) int {
	q := s[open]
	for j := open + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			rest := strings.TrimLeft(s[j+1:], " \t\r\n")
			if rest == "" || rest[0] == ',' {
				return j
			}
		}
	}
	return -1
}

// scanContent reads a quoted new_content value from the text following "new_content =".
// Backslash-escaped quotes do not close the value. When the delimiter occurs
// more than once, the first occurrence followed by another assignment or
// the end of text wins. It reports false when rest does not open with a quote
// or the quote is never closed.
func scanContent(rest string) (content, tail string, ok bool) {
	t := strings.TrimLeft(rest, " \t\r\n")
	if t == "" || !isQuote(t[0]) {
		return "", "", false
	}
	q := t[0]
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(t, triple) {
		if end := strings.Index(t[3:], triple); end >= 0 {
			return unescape(t[3:3+end], q), t[3+end+3:], true
		}
	}

	var closers []int
	for j := 1; j < len(t); j++ {
		switch t[j] {
		case '\\':
			j++
		case q:
			closers = append(closers, j)
		}
	}
	if len(closers) == 0 {
		return "", "", false
	}
	end := closers[len(closers)-1]
	for _, j := range closers {
		after := strings.TrimLeft(t[j+1:], " \t\r\n")
		if after == "" || contentEndRE.MatchString(after) {
			end = j
			break
		}
	}
	return unescape(t[1:end], q), t[end+1:], true
}

// fallbackContent takes everything after "new_content =" when no closing quote exists.
func fallbackContent(rest string) string {
	c := strings.TrimSpace(rest)
	var q byte
	if c != "" && isQuote(c[0]) {
		q = c[0]
		c = c[1:]
	}
	c = strings.TrimRight(c, `"',`)
	return unescape(c, q)
}

func unescape(s string, q byte) string {
	pairs := []string{`\n`, "\n", `\t`, "\t"}
	if q != 0 {
		pairs = append(pairs, `\`+string(q), string(q))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// unquote strips one pair of matching surrounding quotes.
func unquote(v string) string {
	if len(v) < 2 || !isQuote(v[0]) || v[len(v)-1] != v[0] {
		return v
	}
	q := string(v[0])
	return strings.ReplaceAll(v[1:len(v)-1], `\`+q, q)
}

func noneToNil(v string) any {
	if strings.EqualFold(v, "none") {
		return nil
	}
	return v
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}
