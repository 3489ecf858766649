package arangodb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/log"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	apiLoggerState  = "/_api/replication/logger-state"
	apiLoggerFollow = "/_api/replication/logger-follow"

	headerLastIncluded = "X-Arango-Replication-Lastincluded"
	headerCheckMore    = "X-Arango-Replication-Checkmore"
	headerFromPresent  = "X-Arango-Replication-Frompresent"

	defaultEndpoint  = "http://localhost:8529"
	defaultDatabase  = "_system"
	defaultTimeout   = 30 * time.Second
	defaultChunkSize = 1024 * 1024
)

type Config struct {
	Endpoint  string        `mapstructure:"endpoint" json:"endpoint" toml:"endpoint" yaml:"endpoint"`
	Database  string        `mapstructure:"database" json:"database" toml:"database" yaml:"database"`
	Username  string        `mapstructure:"username" json:"username" toml:"username" yaml:"username"`
	Password  string        `mapstructure:"password" json:"password" toml:"password" yaml:"password"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout" toml:"timeout" yaml:"timeout"`
	ChunkSize int64         `mapstructure:"chunk-size" json:"chunk-size" toml:"chunk-size" yaml:"chunk-size"`
}

func (c *Config) ValidateAndSetDefault() error {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if _, err := url.Parse(c.Endpoint); err != nil {
		return errors.Annotatef(err, "invalid endpoint %q", c.Endpoint)
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return errors.Errorf("endpoint %q must be http or https", c.Endpoint)
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	return nil
}

// Connect validates the config and builds a replication-log client. No
// request is made here; the trigger probes with LoggerState during Init.
func (c *Config) Connect() (*Client, error) {
	if err := c.ValidateAndSetDefault(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Client{
		cfg:  *c,
		http: &http.Client{Timeout: c.Timeout},
	}, nil
}

// Client speaks to one database's replication endpoints over HTTP.
type Client struct {
	cfg  Config
	http *http.Client
}

func (c *Client) Database() string {
	return c.cfg.Database
}

func (c *Client) url(endpoint string) string {
	return fmt.Sprintf("%s/_db/%s%s", c.cfg.Endpoint, c.cfg.Database, endpoint)
}

func (c *Client) newRequest(ctx context.Context, uri string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, uri string) (*http.Response, error) {
	req, err := c.newRequest(ctx, uri)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTriggerError(errors.ErrCodeTransport, errors.Annotatef(err, "GET %s", uri))
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		drain(resp)
		return nil, errors.ErrUnauthorized
	case resp.StatusCode == http.StatusMethodNotAllowed:
		drain(resp)
		return nil, errors.NewTriggerErrorMessage(errors.ErrCodeTransport,
			fmt.Sprintf("replication API not available on %s (method not allowed)", uri))
	case resp.StatusCode >= 500:
		drain(resp)
		return nil, errors.NewTriggerErrorMessage(errors.ErrCodeTransport,
			fmt.Sprintf("server error %d on GET %s", resp.StatusCode, uri))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent:
		drain(resp)
		return nil, errors.NewTriggerErrorMessage(errors.ErrCodeTransport,
			fmt.Sprintf("unexpected status %d on GET %s", resp.StatusCode, uri))
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if err := resp.Body.Close(); err != nil {
		log.Errorf("close response body err:%v", err)
	}
}

// LoggerState fetches the current logger state, used both as the Init
// reachability probe and as the bootstrap source for the log head tick.
func (c *Client) LoggerState(ctx context.Context) (*wal.LoggerState, error) {
	resp, err := c.do(ctx, c.url(apiLoggerState))
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	var data struct {
		State wal.LoggerState `json:"state"`
	}
	if err = codec.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.NewTriggerError(errors.ErrCodeTransport,
			errors.Annotate(err, "decode logger-state response"))
	}
	return &data.State, nil
}

// LoggerFollow fetches the raw batch of log records strictly after from.
// Records stay unparsed; semantic decoding is wal.DecodeRecord's job.
func (c *Client) LoggerFollow(ctx context.Context, from wal.Position) (*wal.FollowBatch, error) {
	uri := fmt.Sprintf("%s?from=%s&chunkSize=%d", c.url(apiLoggerFollow), from, c.cfg.ChunkSize)
	resp, err := c.do(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	batch := &wal.FollowBatch{
		FromPresent: resp.Header.Get(headerFromPresent) != "false",
		CheckMore:   resp.Header.Get(headerCheckMore) == "true",
	}
	if v := resp.Header.Get(headerLastIncluded); v != "" && v != "0" {
		if batch.LastIncluded, err = wal.ParsePosition(v); err != nil {
			return nil, errors.NewTriggerError(errors.ErrCodeTransport,
				errors.Annotatef(err, "bad %s header", headerLastIncluded))
		}
	}
	if resp.StatusCode == http.StatusNoContent || batch.LastIncluded.IsZero() {
		return batch, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := make([]byte, len(line))
		copy(rec, line)
		batch.Records = append(batch.Records, rec)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.NewTriggerError(errors.ErrCodeTransport,
			errors.Annotate(err, "read logger-follow body"))
	}
	return batch, nil
}
