package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/jaehk/yt-subtitle-analyzer/config"
	"github.com/jaehk/yt-subtitle-analyzer/errors"
)

var languageCodeRe = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

type Validator struct {
	config *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateURL performs URL validation
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	// Protocol validation
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	// Domain validation
	host := parsedURL.Hostname()
	if !strings.HasSuffix(host, "youtube.com") && host != "youtu.be" {
		return errors.InvalidInput(op, nil, "Only YouTube URLs are supported")
	}

	return nil
}

// ValidateLanguage checks that lang looks like a BCP 47 code ("ko", "en",
// "zh-Hans"). Empty is allowed; the service substitutes the default.
func (v *Validator) ValidateLanguage(lang string) error {
	const op = "Validator.ValidateLanguage"

	if lang == "" {
		return nil
	}
	if !languageCodeRe.MatchString(lang) {
		return errors.InvalidInput(op, nil, fmt.Sprintf("Invalid language code: %s", lang))
	}
	return nil
}

// ExtractVideoID pulls the 11-character video ID out of the usual YouTube URL
// shapes: watch?v=, youtu.be/, shorts/, embed/.
func ExtractVideoID(urlStr string) string {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	host := parsedURL.Hostname()
	if host == "youtu.be" {
		return strings.Trim(parsedURL.Path, "/")
	}

	if id := parsedURL.Query().Get("v"); id != "" {
		return id
	}

	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if strings.HasPrefix(parsedURL.Path, prefix) {
			rest := strings.TrimPrefix(parsedURL.Path, prefix)
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				rest = rest[:i]
			}
			return rest
		}
	}

	return ""
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	// Method validation
	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.InvalidInput(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	// Content type validation
	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidInput(op, nil, "Content-Type must be application/json")
		}
	}

	// Content length validation
	if opts.MaxContentLength > 0 && r.ContentLength > opts.MaxContentLength {
		return errors.InvalidInput(op, nil, "Request body too large")
	}

	return nil
}
