// Package kv stores cards and their neighbour lists in Redis.
//
// Layout:
//
//	<id>                 hash: name, text, power, toughness, color_identity, type, cmc
//	multiverse_id:<id>   sorted set: neighbour id scored by similarity
//	cardnames            set of every card name
//	cardname_ids         hash: name -> id
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/rank"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	neighborPrefix = "multiverse_id:"
	namesKey       = "cardnames"
	nameIndexKey   = "cardname_ids"

	defaultBatchSize = 500
)

var ErrNotFound = errors.New("card not found")

// Store is a Redis-backed pipeline sink and neighbour reader.
type Store struct {
	rdb       *redis.Client
	batchSize int
	logger    *zap.Logger
}

// NewStore connects to redisURL and verifies the connection.
func NewStore(redisURL string, batchSize int, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger.Info("Redis connected", zap.String("addr", opts.Addr))
	return &Store{rdb: rdb, batchSize: batchSize, logger: logger}, nil
}

func cardKey(id int) string     { return strconv.Itoa(id) }
func neighborKey(id int) string { return neighborPrefix + strconv.Itoa(id) }

// Name implements pipeline.Sink.
func (s *Store) Name() string { return "redis" }

// Emit writes every card hash, the name indexes and every neighbour set.
// Existing keys for the run's cards are replaced, not merged.
func (s *Store) Emit(ctx context.Context, res *pipeline.Result) error {
	cards := res.Cards.Cards()
	for start := 0; start < len(cards); start += s.batchSize {
		batch := cards[start:min(start+s.batchSize, len(cards))]
		_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range batch {
				writeCard(ctx, pipe, c)
				writeNeighbors(ctx, pipe, c.MultiverseID, res.Neighbors[c.MultiverseID])
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("write cards %d-%d: %w", start, start+len(batch), err)
		}
		s.logger.Debug("batch written", zap.Int("offset", start), zap.Int("size", len(batch)))
	}
	return nil
}

func writeCard(ctx context.Context, pipe redis.Pipeliner, c card.Card) {
	key := cardKey(c.MultiverseID)
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, cardFields(c))
	pipe.SAdd(ctx, namesKey, c.Name)
	pipe.HSet(ctx, nameIndexKey, c.Name, c.MultiverseID)
}

func writeNeighbors(ctx context.Context, pipe redis.Pipeliner, id int, list rank.List) {
	key := neighborKey(id)
	pipe.Del(ctx, key)
	if len(list) == 0 {
		return
	}
	members := make([]redis.Z, len(list))
	for i, nb := range list {
		members[i] = redis.Z{Score: nb.Score, Member: nb.ID}
	}
	pipe.ZAdd(ctx, key, members...)
}

func cardFields(c card.Card) map[string]interface{} {
	f := map[string]interface{}{"name": c.Name}
	if c.Text != nil {
		f["text"] = *c.Text
	}
	if c.Power != nil {
		f["power"] = *c.Power
	}
	if c.Toughness != nil {
		f["toughness"] = *c.Toughness
	}
	if c.ColorIdentity != nil {
		f["color_identity"] = strings.Join(c.ColorIdentity, ",")
	}
	if c.Type != nil {
		f["type"] = *c.Type
	}
	if c.CMC != nil {
		f["cmc"] = strconv.FormatFloat(*c.CMC, 'f', -1, 64)
	}
	return f
}

// Card reads a card hash back.
func (s *Store) Card(ctx context.Context, id int) (*card.Card, error) {
	fields, err := s.rdb.HGetAll(ctx, cardKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get card %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	c := &card.Card{MultiverseID: id, Name: fields["name"]}
	if v, ok := fields["text"]; ok {
		c.Text = card.Str(v)
	}
	if v, ok := fields["power"]; ok {
		c.Power = card.Str(v)
	}
	if v, ok := fields["toughness"]; ok {
		c.Toughness = card.Str(v)
	}
	if v, ok := fields["color_identity"]; ok {
		c.ColorIdentity = []string{}
		if v != "" {
			c.ColorIdentity = strings.Split(v, ",")
		}
	}
	if v, ok := fields["type"]; ok {
		c.Type = card.Str(v)
	}
	if v, ok := fields["cmc"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("card %d cmc %q: %w", id, v, err)
		}
		c.CMC = card.Num(f)
	}
	return c, nil
}

// Similar returns up to limit neighbours of id, best first.
func (s *Store) Similar(ctx context.Context, id, limit int) (rank.List, error) {
	if limit <= 0 {
		limit = rank.DefaultK
	}
	zs, err := s.rdb.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
		Key:   neighborKey(id),
		Start: 0,
		Stop:  limit - 1,
		Rev:   true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("similar %d: %w", id, err)
	}
	if len(zs) == 0 {
		n, err := s.rdb.Exists(ctx, cardKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("similar %d: %w", id, err)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
	}
	list := make(rank.List, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		nid, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("similar %d: bad member %q", id, member)
		}
		list = append(list, rank.Neighbor{ID: nid, Score: z.Score})
	}
	return list, nil
}

// NameMatch is one name search hit.
type NameMatch struct {
	Name string `json:"name"`
	ID   int    `json:"multiverse_id"`
}

// SearchNames returns cards whose name contains query, case-insensitively,
// sorted by name.
func (s *Store) SearchNames(ctx context.Context, query string, limit int) ([]NameMatch, error) {
	all, err := s.rdb.HGetAll(ctx, nameIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("search names: %w", err)
	}
	q := strings.ToLower(query)
	var out []NameMatch
	for name, v := range all {
		if !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		id, err := strconv.Atoi(v)
		if err != nil {
			s.logger.Warn("bad name index entry", zap.String("name", name), zap.String("id", v))
			continue
		}
		out = append(out, NameMatch{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close shuts down the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
