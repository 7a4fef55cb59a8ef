// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

package attempt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	"credprobe/src/logging"
	"credprobe/src/model"
)

const (
	DefaultMarker  = "Dashboard"
	DefaultTimeout = 10 * time.Second

	maxBodySize  = 2 << 20
	maxRedirects = 10
)

// Predicate decides from the final response whether the login worked.
type Predicate func(status int, body []byte) bool

// MarkerPredicate accepts an HTTP 200 whose body contains marker.
func MarkerPredicate(marker string) Predicate {
	m := []byte(marker)
	return func(status int, body []byte) bool {
		return status == http.StatusOK && bytes.Contains(body, m)
	}
}

// WordPress logs in through a wp-login.php style form: a GET to collect
// cookies, then a POST of the credentials. Every attempt gets its own
// cookie jar.
type WordPress struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	success   Predicate
}

type Option func(*WordPress)

func WithTimeout(d time.Duration) Option {
	return func(w *WordPress) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(w *WordPress) { w.userAgent = ua }
}

func WithPredicate(p Predicate) Option {
	return func(w *WordPress) {
		if p != nil {
			w.success = p
		}
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(w *WordPress) {
		if rt != nil {
			w.transport = rt
		}
	}
}

func NewWordPress(opts ...Option) *WordPress {
	w := &WordPress{
		transport: http.DefaultTransport.(*http.Transport).Clone(),
		timeout:   DefaultTimeout,
		success:   MarkerPredicate(DefaultMarker),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.transport = otelhttp.NewTransport(w.transport)
	return w
}

func (w *WordPress) Attempt(ctx context.Context, address, user, password string) model.AttemptOutcome {
	outcome := model.AttemptOutcome{User: user, Password: password}

	ok, err := w.try(ctx, address, user, password)
	if err != nil {
		logging.Count(ctx, logging.MetricTransportFailures, 1)
		logging.Log("Login attempt failed: "+err.Error(), slog.LevelWarn,
			slog.String("address", address), slog.String("user", user))
		return outcome
	}
	outcome.Succeeded = ok
	return outcome
}

func (w *WordPress) try(ctx context.Context, address, user, password string) (bool, error) {
	client, err := w.newSession()
	if err != nil {
		return false, err
	}

	if _, _, err := w.do(ctx, client, http.MethodGet, address, nil); err != nil {
		return false, fmt.Errorf("get login page: %w", err)
	}

	form := url.Values{
		"log":        {user},
		"pwd":        {password},
		"wp-submit":  {"Log In"},
		"testcookie": {"1"},
	}
	status, body, err := w.do(ctx, client, http.MethodPost, address, form)
	if err != nil {
		return false, fmt.Errorf("post credentials: %w", err)
	}
	return w.success(status, body), nil
}

func (w *WordPress) newSession() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{
		Transport: w.transport,
		Jar:       jar,
		Timeout:   w.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

func (w *WordPress) do(ctx context.Context, client *http.Client, method, address string, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, address, body)
	if err != nil {
		return 0, nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}
