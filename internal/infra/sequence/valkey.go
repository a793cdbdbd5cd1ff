package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/cityweather/internal/domain/weather"
)

// ValkeyStore shares generation counters between replicas through Valkey.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "cityweather"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Next increments the slot counter and refreshes its TTL.
func (s *ValkeyStore) Next(ctx context.Context, session, slot string, ttl time.Duration) (uint64, error) {
	k := s.counterKey(session, slot)
	cmds := []valkey.Completed{s.client.B().Incr().Key(k).Build()}
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmds = append(cmds, s.client.B().Expire().Key(k).Seconds(int64(ttl/time.Second)).Build())
	}
	results := s.client.DoMulti(ctx, cmds...)
	value, err := results[0].AsInt64()
	if err != nil {
		return 0, err
	}
	for _, res := range results[1:] {
		if err := res.Error(); err != nil {
			return 0, err
		}
	}
	return uint64(value), nil
}

// Current reads the slot counter; a missing key reads as zero.
func (s *ValkeyStore) Current(ctx context.Context, session, slot string) (uint64, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.counterKey(session, slot)).Build()).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(value), nil
}

// Close releases the underlying client.
func (s *ValkeyStore) Close() {
	s.client.Close()
}

func (s *ValkeyStore) counterKey(session, slot string) string {
	return fmt.Sprintf("%s:seq:%s:%s", s.prefix, session, slot)
}

var _ weather.SequenceStore = (*ValkeyStore)(nil)
