package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

var _ alert.Backend = (*Backend)(nil)

type Config struct {
	Addresses   []string
	Username    string
	Password    string
	VerifyCerts bool
	CACert      string
	Timeout     time.Duration
}

// markScript leaves processed documents untouched so a repeated mark is a noop.
const markScript = `if (ctx._source.processed == true) { ctx.op = 'noop' } else { ctx._source.processed = true; ctx._source.processed_at = params.at }`

type Backend struct {
	cfg Config
	log *zap.Logger

	mu        sync.RWMutex
	es        *elasticsearch.Client
	transport *http.Transport
}

func New(cfg Config) *Backend {
	return &Backend{cfg: cfg, log: zap.L().With(zap.String("component", "elastic.backend"))}
}

func (b *Backend) WithLogger(l *zap.Logger) *Backend {
	if l != nil {
		b.log = l.With(zap.String("component", "elastic.backend"))
	}
	return b
}

func (b *Backend) Connect(ctx context.Context) error {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !b.cfg.VerifyCerts},
		ResponseHeaderTimeout: b.cfg.Timeout,
		MaxIdleConnsPerHost:   4,
	}
	esCfg := elasticsearch.Config{
		Addresses: b.cfg.Addresses,
		Username:  b.cfg.Username,
		Password:  b.cfg.Password,
		Transport: tr,
	}
	if b.cfg.CACert != "" {
		pem, err := os.ReadFile(b.cfg.CACert)
		if err != nil {
			return fmt.Errorf("read ca cert: %w", err)
		}
		esCfg.CACert = pem
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		tr.CloseIdleConnections()
		return alert.Unavailable(fmt.Errorf("elasticsearch info: %w", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		tr.CloseIdleConnections()
		return alert.Unavailable(fmt.Errorf("elasticsearch info: %s", res.Status()))
	}
	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	_ = json.NewDecoder(res.Body).Decode(&info)

	b.mu.Lock()
	old := b.transport
	b.es, b.transport = es, tr
	b.mu.Unlock()
	if old != nil {
		old.CloseIdleConnections()
	}

	b.log.Info("elasticsearch connected",
		zap.Strings("addresses", b.cfg.Addresses),
		zap.String("cluster", info.ClusterName),
		zap.String("version", info.Version.Number),
	)
	return nil
}

func (b *Backend) client() (*elasticsearch.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.es == nil {
		return nil, alert.Unavailable(errors.New("elasticsearch: not connected"))
	}
	return b.es, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	es, err := b.client()
	if err != nil {
		return err
	}
	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return alert.Unavailable(fmt.Errorf("elasticsearch ping: %w", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return alert.Unavailable(fmt.Errorf("elasticsearch ping: %s", res.Status()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Index  string          `json:"_index"`
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type document struct {
	Processed bool            `json:"processed"`
	Timestamp json.RawMessage `json:"timestamp"`
	Message   *string         `json:"message"`
}

func unprocessedQuery(limit int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"processed": false}},
				},
			},
		},
		"sort": []any{
			map[string]any{"timestamp": map[string]any{"order": "asc", "unmapped_type": "date"}},
		},
		"size": limit,
	}
}

func (b *Backend) Fetch(ctx context.Context, source string, limit int) ([]alert.Alert, error) {
	es, err := b.client()
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(unprocessedQuery(limit)); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(source),
		es.Search.WithBody(&body),
	)
	if err != nil {
		return nil, alert.Unavailable(fmt.Errorf("search %s: %w", source, err))
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		b.log.Warn("index not found", zap.String("source", source))
		return nil, nil
	}
	if err := responseErr(res, "search "+source); err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search %s: %w", source, err)
	}

	out := make([]alert.Alert, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		var doc document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			b.log.Warn("skip undecodable document", zap.String("source", source), zap.String("doc_id", h.ID), zap.Error(err))
			continue
		}
		ts, err := parseTimestamp(doc.Timestamp)
		if err != nil {
			b.log.Warn("bad timestamp", zap.String("source", source), zap.String("doc_id", h.ID), zap.Error(err))
		}
		msg := "No message provided"
		if doc.Message != nil {
			msg = *doc.Message
		}
		out = append(out, alert.Alert{
			ID:        h.ID,
			Source:    source,
			Processed: doc.Processed,
			Timestamp: ts,
			Message:   msg,
		})
	}
	return out, nil
}

func (b *Backend) MarkProcessed(ctx context.Context, ref alert.Ref, at time.Time) error {
	es, err := b.client()
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(map[string]any{
		"script": map[string]any{
			"lang":   "painless",
			"source": markScript,
			"params": map[string]any{"at": at.UTC().Format(time.RFC3339Nano)},
		},
	}); err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	res, err := es.Update(ref.Source, ref.ID, &body,
		es.Update.WithContext(ctx),
		es.Update.WithRetryOnConflict(3),
		es.Update.WithRefresh("wait_for"),
	)
	if err != nil {
		return alert.Unavailable(fmt.Errorf("update %s: %w", ref, err))
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("update %s: %w", ref, alert.ErrNotFound)
	}
	if err := responseErr(res, "update "+ref.String()); err != nil {
		return err
	}

	var ur struct {
		Result string `json:"result"`
	}
	_ = json.NewDecoder(res.Body).Decode(&ur)
	b.log.Debug("marked processed", zap.String("source", ref.Source), zap.String("doc_id", ref.ID), zap.String("result", ur.Result))
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport != nil {
		b.transport.CloseIdleConnections()
	}
	b.es, b.transport = nil, nil
	return nil
}

// responseErr treats overload and cluster failures as unavailability.
func responseErr(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	err := fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(raw))
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return alert.Unavailable(err)
	}
	return err
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return alert.ParseTimestamp(s)
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
