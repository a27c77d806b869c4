// Package result normalizes the provider's heterogeneous output
// payloads into an ordered list of absolute URLs.
//
// The provider returns outputs in one of three shapes: a bare list of
// URL strings, a list of objects each carrying a URL-bearing field, or a
// loosely-keyed object whose values are scanned for image paths. Shape
// detectors run in that order; an unrecognized shape yields zero results
// rather than an error, because a job that genuinely succeeded with a
// changed output container must stay distinguishable from a failed one.
package result

import (
	"encoding/json"
	"sort"
	"strings"
)

// urlFields are the object-list keys checked for a URL value, in order.
var urlFields = []string{"fileUrl", "url", "imageUrl"}

// imageSuffixes identify values that look like image paths when scanning
// a loosely-keyed object.
var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// Normalize converts a raw output payload into absolute URLs resolved
// against base, the job's region base URL. Relative paths are relative
// to the provider's own domain, not the caller's.
func Normalize(raw json.RawMessage, base string) []string {
	if len(raw) == 0 {
		return nil
	}

	detectors := []func(json.RawMessage) ([]string, bool){
		detectStringList,
		detectObjectList,
		detectKeyedObject,
	}
	for _, detect := range detectors {
		if urls, ok := detect(raw); ok {
			out := make([]string, 0, len(urls))
			for _, u := range urls {
				out = append(out, ResolveURL(base, u))
			}
			return out
		}
	}
	return nil
}

// ResolveURL makes ref absolute: absolute inputs pass through unchanged,
// leading-slash paths get the base prepended, and bare relative names
// get base plus a separator.
func ResolveURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	return base + "/" + ref
}

// detectStringList matches ["a.png", "/b.png", ...].
func detectStringList(raw json.RawMessage) ([]string, bool) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// detectObjectList matches [{"fileUrl": "..."}, ...], accepting any of
// the known URL-bearing fields per element.
func detectObjectList(raw json.RawMessage) ([]string, bool) {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	urls := make([]string, 0, len(list))
	for _, obj := range list {
		if u, ok := urlFromObject(obj); ok {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, false
	}
	return urls, true
}

func urlFromObject(obj map[string]json.RawMessage) (string, bool) {
	for _, field := range urlFields {
		rawVal, ok := obj[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(rawVal, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

// detectKeyedObject matches a single object whose string values are
// scanned for things that look like image paths. Keys are visited in
// sorted order so the output is deterministic.
func detectKeyedObject(raw json.RawMessage) ([]string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var urls []string
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(obj[k], &s); err != nil {
			continue
		}
		if looksLikeImagePath(s) {
			urls = append(urls, s)
		}
	}
	if len(urls) == 0 {
		return nil, false
	}
	return urls, true
}

func looksLikeImagePath(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
