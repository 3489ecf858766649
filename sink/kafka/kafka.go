package kafka

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/trigger"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

type SASLConfig struct {
	Enable   bool   `mapstructure:"enable" json:"enable" toml:"enable" yaml:"enable"`
	User     string `mapstructure:"user" json:"user" toml:"user" yaml:"user"`
	Password string `mapstructure:"password" json:"password" toml:"password" yaml:"password"`
}

type Config struct {
	BrokerAddrs  []string      `mapstructure:"broker-addrs" json:"broker-addrs" toml:"broker-addrs" yaml:"broker-addrs"`
	Topic        string        `mapstructure:"topic" json:"topic" toml:"topic" yaml:"topic"`
	Compression  string        `mapstructure:"compression" json:"compression" toml:"compression" yaml:"compression"`
	BatchTimeout time.Duration `mapstructure:"batch-timeout" json:"batch-timeout" toml:"batch-timeout" yaml:"batch-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout" json:"write-timeout" toml:"write-timeout" yaml:"write-timeout"`
	SASL         SASLConfig    `mapstructure:"sasl" json:"sasl" toml:"sasl" yaml:"sasl"`
}

func (c *Config) ValidateAndSetDefault() error {
	if len(c.BrokerAddrs) == 0 {
		return errors.New("kafka sink broker-addrs is empty")
	}
	if c.Topic == "" {
		return errors.New("kafka sink topic is empty")
	}
	switch c.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return errors.Errorf("unknown kafka compression %q", c.Compression)
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 100 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return nil
}

func (c *Config) compressionCodec() kafka.Compression {
	switch c.Compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	}
	return 0
}

// Connect builds the sink. Messages for one document key always land on
// the same partition so per-document order survives the relay.
func (c *Config) Connect() (*Sink, error) {
	if err := c.ValidateAndSetDefault(); err != nil {
		return nil, errors.Trace(err)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(c.BrokerAddrs...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: c.BatchTimeout,
		Compression:  c.compressionCodec(),
	}
	if c.SASL.Enable {
		writer.Transport = &kafka.Transport{
			DialTimeout: 5 * time.Second,
			SASL: plain.Mechanism{
				Username: c.SASL.User,
				Password: c.SASL.Password,
			},
		}
	}
	return &Sink{writer: writer, timeout: c.WriteTimeout}, nil
}

// Sink relays document operations to a Kafka topic as JSON. It plugs into
// a subscription as its handler.
type Sink struct {
	writer  *kafka.Writer
	timeout time.Duration
}

var _ trigger.Handler = (*Sink)(nil)

func (s *Sink) Invoke(_ *trigger.HandlerContext, op *wal.DocumentOperation) error {
	value, err := codec.Marshal(op)
	if err != nil {
		return errors.Trace(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(op.Collection + "/" + op.Key),
		Value: value,
	}
	if err = s.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Annotatef(err, "write %s/%s to topic %s", op.Collection, op.Key, s.writer.Topic)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
