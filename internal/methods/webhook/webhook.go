package webhook

import (
	"context"
	"net/http"
	"net/url"

	"github.com/NordCoder/alert-notifier/internal/methods"
)

type Config struct {
	methods.Common `mapstructure:",squash"`
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
}

type Method struct {
	id     string
	url    string
	client *http.Client
}

func New(id string, client *http.Client, cfg Config) (*Method, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, methods.Invalid(id, "url %q is not an absolute URL", cfg.URL)
	}
	if len(cfg.Headers) > 0 {
		client = withHeaders(client, cfg.Headers)
	}
	return &Method{id: id, url: cfg.URL, client: client}, nil
}

func (m *Method) ID() string { return m.id }

func (m *Method) Send(ctx context.Context, message string) error {
	return methods.PostJSON(ctx, m.client, m.url, map[string]string{"text": message})
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req)
}

func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	cp := *client
	next := cp.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	cp.Transport = headerTransport{headers: headers, next: next}
	return &cp
}
