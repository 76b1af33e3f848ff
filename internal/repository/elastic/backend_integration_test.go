//go:build integration

package elastic

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/alert"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startElasticsearch(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.elastic.co/elasticsearch/elasticsearch:8.17.0",
			ExposedPorts: []string{"9200/tcp"},
			Env: map[string]string{
				"discovery.type":         "single-node",
				"xpack.security.enabled": "false",
				"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
			},
			WaitingFor: wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("elasticsearch container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9200")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func index(t *testing.T, es *elasticsearch.Client, idx, id, body string) {
	t.Helper()
	res, err := es.Index(idx, strings.NewReader(body),
		es.Index.WithDocumentID(id),
		es.Index.WithRefresh("true"),
	)
	require.NoError(t, err)
	defer res.Body.Close()
	require.False(t, res.IsError(), res.String())
}

func TestBackend_Elasticsearch(t *testing.T) {
	addr := startElasticsearch(t)
	ctx := context.Background()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{addr}})
	require.NoError(t, err)

	index(t, es, "alerts", "d2", `{"processed":false,"timestamp":"2024-01-01T10:01:00Z","message":"second"}`)
	index(t, es, "alerts", "d1", `{"processed":false,"timestamp":"2024-01-01T10:00:00Z","message":"first"}`)
	index(t, es, "alerts", "d0", `{"processed":true,"timestamp":"2024-01-01T09:00:00Z","message":"old"}`)

	b := New(Config{Addresses: []string{addr}, Timeout: 10 * time.Second})
	require.NoError(t, b.Connect(ctx))
	defer b.Close()

	got, err := b.Fetch(ctx, "alerts", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)

	ref := alert.Ref{Source: "alerts", ID: "d1"}
	require.NoError(t, b.MarkProcessed(ctx, ref, time.Now()))
	require.NoError(t, b.MarkProcessed(ctx, ref, time.Now()))

	got, err = b.Fetch(ctx, "alerts", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d2", got[0].ID)

	got, err = b.Fetch(ctx, "missing-index", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, b.MarkProcessed(ctx, alert.Ref{Source: "alerts", ID: "ghost"}, time.Now()), alert.ErrNotFound)
}
