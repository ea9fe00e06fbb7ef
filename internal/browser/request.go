package browser

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/conneroisu/pagewith/internal/urlutil"
)

// IdentityHeader carries the id used to match a response to the request
// issued by Scenario.Request.
const IdentityHeader = "accept-language"

// RequestInit mirrors the subset of fetch() options the helper forwards.
type RequestInit struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ResponsePredicate selects the response a request waits for. url is the
// resolved request URL.
type ResponsePredicate func(resp playwright.Response, url string) bool

const fetchScript = `([url, init]) => { fetch(url, init).catch(() => {}); }`

// ResolveURL resolves root-relative URLs against origin's scheme and host.
func ResolveURL(origin, url string) string {
	if !strings.HasPrefix(url, "/") {
		return url
	}

	if i := strings.Index(origin, "://"); i >= 0 {
		if j := strings.Index(origin[i+3:], "/"); j >= 0 {
			origin = origin[:i+3+j]
		}
	}

	return urlutil.Join(origin, url)
}

// withIdentity copies init and tags it with id.
func withIdentity(init *RequestInit, id string) RequestInit {
	var out RequestInit
	if init != nil {
		out.Method = init.Method
		out.Body = init.Body
	}

	out.Headers = make(map[string]string)
	if init != nil {
		for key, value := range init.Headers {
			if strings.EqualFold(key, IdentityHeader) {
				continue
			}
			out.Headers[key] = value
		}
	}
	out.Headers[IdentityHeader] = id

	return out
}

// fetchArg converts init to plain maps for the page evaluation.
func (r RequestInit) fetchArg() map[string]interface{} {
	headers := make(map[string]interface{}, len(r.Headers))
	for key, value := range r.Headers {
		headers[key] = value
	}

	arg := map[string]interface{}{"headers": headers}
	if r.Method != "" {
		arg["method"] = r.Method
	}
	if r.Body != "" {
		arg["body"] = r.Body
	}
	return arg
}

// Request issues fetch(url, init) from the page and waits for its response.
// Without a predicate, the response is matched by a unique identity header.
func (s *Scenario) Request(url string, init *RequestInit, predicate ResponsePredicate) (playwright.Response, error) {
	id := uuid.NewString()
	resolved := ResolveURL(s.Origin, url)
	tagged := withIdentity(init, id)

	match := func(resp playwright.Response) bool {
		if predicate != nil {
			return predicate(resp, resolved)
		}
		return resp.Request().Headers()[IdentityHeader] == id
	}

	resp, err := s.Page.ExpectResponse(match, func() error {
		_, err := s.Page.Evaluate(fetchScript, []interface{}{resolved, tagged.fetchArg()})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", resolved, err)
	}

	return resp, nil
}
