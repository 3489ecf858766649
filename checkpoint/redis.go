package checkpoint

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

const defaultRedisKey = "arango-events:last-log-tick"

type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" toml:"addr" yaml:"addr"`
	Username string `mapstructure:"username" json:"username" toml:"username" yaml:"username"`
	Password string `mapstructure:"password" json:"password" toml:"password" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" toml:"db" yaml:"db"`

	// Key holds the checkpoint tick. Distinct tailers sharing one Redis
	// must configure distinct keys.
	Key string `mapstructure:"key" json:"key" toml:"key" yaml:"key"`
}

func (c *RedisConfig) ValidateAndSetDefault() error {
	if c.Addr == "" {
		return errors.New("redis checkpoint addr is empty")
	}
	if c.Key == "" {
		c.Key = defaultRedisKey
	}
	return nil
}

func (c *RedisConfig) Connect() (*RedisStore, error) {
	if err := c.ValidateAndSetDefault(); err != nil {
		return nil, errors.Trace(err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Annotatef(err, "ping redis %s", c.Addr)
	}
	return &RedisStore{client: client, key: c.Key}, nil
}

// RedisStore persists the checkpoint tick under a single Redis string key.
type RedisStore struct {
	client *redis.Client
	key    string
}

func (s *RedisStore) Load(ctx context.Context) (wal.Position, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Annotatef(err, "load checkpoint %s", s.key)
	}
	pos, err := wal.ParsePosition(val)
	if err != nil {
		return 0, errors.Annotatef(err, "corrupt checkpoint %s", s.key)
	}
	return pos, nil
}

func (s *RedisStore) Save(ctx context.Context, pos wal.Position) error {
	if err := s.client.Set(ctx, s.key, pos.String(), 0).Err(); err != nil {
		return errors.Annotatef(err, "save checkpoint %s", s.key)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
