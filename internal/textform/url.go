// Package textform holds the stateless text transformations applied to
// messages on their way across the bridge: URL canonicalization, formatting
// span reconstruction, markdown escaping and nick decoration.
package textform

import (
	"net/url"
	"regexp"
	"strings"
)

// CanonicalURL is the result of canonicalizing a URL. Kind names the
// matching site rule, or "url" for pass-through.
type CanonicalURL struct {
	Kind string
	URL  string
}

// urlRule rewrites one recognized URL shape. Rules are evaluated in order
// and the first match wins; no rule falls through to a later one.
type urlRule struct {
	kind    string
	host    *regexp.Regexp
	path    *regexp.Regexp
	rewrite func(u *url.URL, m []string) string
}

var urlRules = []urlRule{
	{
		kind: "fb-photo",
		host: regexp.MustCompile(`(^|\.)facebook\.com$`),
		path: regexp.MustCompile(`^/([^/]+)/photos/[^/]+/([^/]+)`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://fb.com/" + m[1] + "/photos/" + m[2]
		},
	},
	{
		kind: "fb-story",
		host: regexp.MustCompile(`(^|\.)facebook\.com$`),
		path: regexp.MustCompile(`^/story\.php$`),
		rewrite: func(u *url.URL, m []string) string {
			q := u.Query()
			return u.Scheme + "://fb.com/story.php?story_fbid=" +
				q.Get("story_fbid") + "&id=" + q.Get("id")
		},
	},
	{
		kind: "fb-album",
		host: regexp.MustCompile(`(^|\.)facebook\.com$`),
		path: regexp.MustCompile(`^/([^/]+)/media_set`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://fb.com/" + m[1] + "/media_set?" + u.RawQuery
		},
	},
	{
		kind: "fb-post",
		host: regexp.MustCompile(`(^|\.)facebook\.com$`),
		path: regexp.MustCompile(`^/([^/]+)/posts/([^/]+)`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://fb.com/" + m[1] + "/posts/" + m[2]
		},
	},
	{
		kind: "fb-note",
		host: regexp.MustCompile(`(^|\.)facebook\.com$`),
		path: regexp.MustCompile(`^/notes/([^/]+)/[^/]+/([^/]+)`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://fb.com/notes/" + m[1] + "/" + m[2]
		},
	},
	{
		kind: "medium-post",
		host: regexp.MustCompile(`(^|\.)medium\.com$`),
		path: regexp.MustCompile(`^/(@[^/]+)/(?:[^/]*-)?([0-9a-f]{8,})$`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://medium.com/" + m[1] + "/" + m[2]
		},
	},
	{
		kind: "instagram-post",
		host: regexp.MustCompile(`(^|\.)instagram\.com$`),
		path: regexp.MustCompile(`^/p/([^/]+)`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://instagram.com/p/" + m[1]
		},
	},
	{
		kind: "imgur-gallery",
		host: regexp.MustCompile(`(^|\.)imgur\.com$`),
		path: regexp.MustCompile(`^/gallery/([^/]+)`),
		rewrite: func(u *url.URL, m []string) string {
			return u.Scheme + "://imgur.com/" + m[1]
		},
	},
}

// CanonicalizeURL strips utm_* tracking parameters and rewrites recognized
// site URLs to their canonical short form. Unparseable input passes through
// untouched. Idempotent: canonical input comes back unchanged.
func CanonicalizeURL(raw string) CanonicalURL {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return CanonicalURL{Kind: "url", URL: raw}
	}

	stripTracking(u)

	host := strings.ToLower(u.Hostname())
	for _, rule := range urlRules {
		if !rule.host.MatchString(host) {
			continue
		}
		m := rule.path.FindStringSubmatch(u.Path)
		if m == nil {
			continue
		}
		return CanonicalURL{Kind: rule.kind, URL: rule.rewrite(u, m)}
	}

	return CanonicalURL{Kind: "url", URL: u.String()}
}

// stripTracking removes utm_* query parameters in place.
func stripTracking(u *url.URL) {
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	changed := false
	for key := range q {
		if strings.HasPrefix(key, "utm_") {
			q.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
}

// urlPattern matches URLs embedded in free text.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// CanonicalizeURLsIn rewrites every URL found in text.
func CanonicalizeURLsIn(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(raw string) string {
		return CanonicalizeURL(raw).URL
	})
}

// IsBareURL reports whether text is a single URL and nothing else.
func IsBareURL(text string) bool {
	text = strings.TrimSpace(text)
	return urlPattern.FindString(text) == text && text != ""
}
