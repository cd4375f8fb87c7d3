// Package markup reduces generated prose to the inline HTML subset a chat
// transport accepts and keeps it well formed.
package markup

import (
	"regexp"
	"strings"
)

// AllowedTags is the vocabulary kept by Normalize. code and pre are left
// out on purpose: models tend to leave them unclosed.
var AllowedTags = map[string]bool{
	"b":          true,
	"strong":     true,
	"i":          true,
	"em":         true,
	"u":          true,
	"ins":        true,
	"s":          true,
	"strike":     true,
	"del":        true,
	"a":          true,
	"tg-spoiler": true,
}

// maxPasses bounds the filter/balance loop. Removing a token can join
// the text around it into a new tag, so one pass is not always enough.
const maxPasses = 16

var (
	tagPattern  = regexp.MustCompile(`<(/?)([A-Za-z][A-Za-z0-9-]*)([^<>]*)>`)
	hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']*)["']`)
)

// Normalize filters s down to AllowedTags and balances what is left.
// Text outside tags is copied byte for byte. Passes repeat until the
// output stops changing, so Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	for range maxPasses {
		next := balance(filterTags(s))
		if next == s {
			break
		}
		s = next
	}
	return s
}

func filterTags(s string) string {
	return tagPattern.ReplaceAllStringFunc(s, func(token string) string {
		m := tagPattern.FindStringSubmatch(token)
		closing, name, attrs := m[1], strings.ToLower(m[2]), m[3]

		if !AllowedTags[name] {
			return ""
		}
		if name == "a" && closing == "" {
			href := hrefPattern.FindStringSubmatch(attrs)
			if href == nil {
				return ""
			}
			return `<a href="` + href[1] + `">`
		}
		return "<" + closing + name + ">"
	})
}

// balance walks text runs and tags, dropping closers that do not match
// the innermost open tag and closing whatever is still open at the end.
func balance(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	var stack []string
	last := 0
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(s, -1) {
		sb.WriteString(s[last:loc[0]])
		last = loc[1]

		token := s[loc[0]:loc[1]]
		closing := loc[3] > loc[2]
		name := strings.ToLower(s[loc[4]:loc[5]])

		if !AllowedTags[name] {
			continue
		}
		if !closing {
			stack = append(stack, name)
			sb.WriteString(token)
			continue
		}
		if len(stack) > 0 && stack[len(stack)-1] == name {
			stack = stack[:len(stack)-1]
			sb.WriteString(token)
		}
	}
	sb.WriteString(s[last:])

	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteString("</" + stack[i] + ">")
	}
	return sb.String()
}
