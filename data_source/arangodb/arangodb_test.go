package arangodb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{Endpoint: srv.URL, Database: "shop", Username: "reader", Password: "secret"}
	client, err := cfg.Connect()
	require.NoError(t, err)
	return client
}

func TestConfigValidateAndSetDefault(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ValidateAndSetDefault())
	assert.Equal(t, defaultEndpoint, cfg.Endpoint)
	assert.Equal(t, defaultDatabase, cfg.Database)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, int64(defaultChunkSize), cfg.ChunkSize)

	cfg = &Config{Endpoint: "http://db.internal:8529/"}
	require.NoError(t, cfg.ValidateAndSetDefault())
	assert.Equal(t, "http://db.internal:8529", cfg.Endpoint)

	assert.Error(t, (&Config{Endpoint: "tcp://db:8529"}).ValidateAndSetDefault())
}

func TestLoggerState(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_db/shop/_api/replication/logger-state", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "reader", user)
		assert.Equal(t, "secret", pass)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":{"running":true,"lastLogTick":"5364755","lastUncommittedLogTick":"5364760","totalEvents":120,"time":"2019-03-01T10:00:00Z"},"server":{},"clients":[]}`))
	}))

	state, err := client.LoggerState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Running)

	head, err := state.HeadPosition()
	require.NoError(t, err)
	assert.Equal(t, wal.Position(5364755), head)
}

func TestLoggerFollow(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_db/shop/_api/replication/logger-follow", r.URL.Path)
		assert.Equal(t, "5364750", r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("chunkSize"))

		w.Header().Set(headerLastIncluded, "5364755")
		w.Header().Set(headerCheckMore, "true")
		w.Header().Set(headerFromPresent, "true")
		w.Write([]byte(
			"{\"tick\":\"5364751\",\"type\":2200,\"tid\":\"7\"}\n" +
				"{\"tick\":\"5364755\",\"type\":2300,\"cname\":\"users\",\"data\":{\"_key\":\"1\",\"_rev\":\"_a\"}}\n"))
	}))

	batch, err := client.LoggerFollow(context.Background(), wal.Position(5364750))
	require.NoError(t, err)
	assert.Equal(t, wal.Position(5364755), batch.LastIncluded)
	assert.True(t, batch.CheckMore)
	assert.True(t, batch.FromPresent)
	require.Len(t, batch.Records, 2)

	op, ok, derr := wal.DecodeRecord(batch.Records[1])
	require.NoError(t, derr)
	require.True(t, ok)
	assert.Equal(t, "users", op.Collection)
}

func TestLoggerFollowIdle(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerLastIncluded, "0")
		w.Header().Set(headerCheckMore, "false")
		w.Header().Set(headerFromPresent, "true")
		w.WriteHeader(http.StatusNoContent)
	}))

	batch, err := client.LoggerFollow(context.Background(), wal.Position(5364755))
	require.NoError(t, err)
	assert.True(t, batch.LastIncluded.IsZero())
	assert.True(t, batch.FromPresent)
	assert.Empty(t, batch.Records)
}

func TestLoggerFollowGap(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerLastIncluded, "0")
		w.Header().Set(headerCheckMore, "false")
		w.Header().Set(headerFromPresent, "false")
		w.WriteHeader(http.StatusNoContent)
	}))

	batch, err := client.LoggerFollow(context.Background(), wal.Position(10))
	require.NoError(t, err)
	assert.False(t, batch.FromPresent)
}

func TestUnauthorized(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.LoggerState(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnauthorized))
}

func TestServerErrorIsRetryable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.LoggerFollow(context.Background(), wal.Position(1))
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}
