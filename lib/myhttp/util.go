package myhttp

import (
	"fmt"
	"net/http"
	"os"
)

// HostnameWithScheme derives the externally visible base URL from the
// incoming request.
func HostnameWithScheme(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GuessHostnameWithScheme is used where no request is at hand: an
// env-configured base URL with a local fallback.
func GuessHostnameWithScheme() string {
	baseURL := os.Getenv("BASE_URL")
	if baseURL != "" {
		return baseURL
	}

	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project != "" {
		return fmt.Sprintf("https://%s.appspot.com", project)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return fmt.Sprintf("http://localhost:%s", port)
}
