package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                   "/",
		"/metrics":                           "/metrics",
		"/v1/letters/01ABC":                  "/v1/letters/:id",
		"/v1/letters/01ABC/download":         "/v1/letters/:id/download",
		"/v1/letters/01ABC/replace-scan":     "/v1/letters/:id/replace-scan",
		"/v1/letters/next-ref":               "/v1/letters/next-ref",
		"/v1/letters/signed-url":             "/v1/letters/signed-url",
		"/v1/letters/recipients/list":        "/v1/letters/recipients/list",
		"/v1/users/search?q=ab":              "/v1/users/search",
		"/v1/admin/create-user":              "/v1/admin/create-user",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
