package textform

import "testing"

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind string
		want string
	}{
		{
			"utm parameters stripped",
			"https://example.com/article?utm_source=x&utm_medium=y&ref=1",
			"url",
			"https://example.com/article?ref=1",
		},
		{
			"all utm stripped leaves clean url",
			"https://example.com/article?utm_source=x",
			"url",
			"https://example.com/article",
		},
		{
			"facebook photo",
			"https://www.facebook.com/someuser/photos/a.123/456789",
			"fb-photo",
			"https://fb.com/someuser/photos/456789",
		},
		{
			"facebook post",
			"https://www.facebook.com/someuser/posts/123456",
			"fb-post",
			"https://fb.com/someuser/posts/123456",
		},
		{
			"medium post",
			"https://medium.com/@writer/catchy-title-decafbad1234",
			"medium-post",
			"https://medium.com/@writer/decafbad1234",
		},
		{
			"instagram post",
			"https://www.instagram.com/p/AbCdEf/",
			"instagram-post",
			"https://instagram.com/p/AbCdEf",
		},
		{
			"imgur gallery",
			"https://imgur.com/gallery/abc123",
			"imgur-gallery",
			"https://imgur.com/abc123",
		},
		{
			"unrecognized passes through",
			"https://go.dev/blog/generics",
			"url",
			"https://go.dev/blog/generics",
		},
		{
			"unparseable passes through",
			"://not-a-url",
			"url",
			"://not-a-url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalizeURL(tt.in)
			if got.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", got.Kind, tt.kind)
			}
			if got.URL != tt.want {
				t.Errorf("url = %q, want %q", got.URL, tt.want)
			}
		})
	}
}

func TestCanonicalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/article?utm_source=x&ref=1",
		"https://imgur.com/gallery/abc123",
		"https://www.facebook.com/someuser/posts/123456",
		"https://go.dev/blog/generics",
	}
	for _, in := range inputs {
		once := CanonicalizeURL(in).URL
		twice := CanonicalizeURL(once).URL
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCanonicalizeURLsIn(t *testing.T) {
	in := "see https://example.com/a?utm_source=x and https://imgur.com/gallery/zz9"
	want := "see https://example.com/a and https://imgur.com/zz9"
	if got := CanonicalizeURLsIn(in); got != want {
		t.Errorf("CanonicalizeURLsIn = %q, want %q", got, want)
	}
}

func TestIsBareURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a", true},
		{"  https://example.com/a  ", true},
		{"see https://example.com/a", false},
		{"https://example.com/a trailing", false},
		{"no url at all", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsBareURL(tt.in); got != tt.want {
			t.Errorf("IsBareURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
