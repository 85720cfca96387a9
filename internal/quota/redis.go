package quota

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

// consumeScript checks the day's counter against the limit and increments
// it only when a send is left. It returns {allowed, used}.
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current + 1 > limit then
    return {0, current}
end
local used = redis.call("INCR", KEYS[1])
if used == 1 then
    redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
end
return {1, used}
`)

// RedisTracker keeps counters in Redis so that every worker shares them.
type RedisTracker struct {
	rdb redis.Cmdable
	cfg Config
	loc *time.Location
	now func() time.Time
	log *zap.Logger
}

// Option configures a RedisTracker.
type Option func(*RedisTracker)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(t *RedisTracker) { t.now = now }
}

// WithLocation sets the zone whose midnight resets the counters.
func WithLocation(loc *time.Location) Option {
	return func(t *RedisTracker) { t.loc = loc }
}

// NewRedisTracker creates a tracker. Zero config fields take defaults.
func NewRedisTracker(rdb redis.Cmdable, cfg Config, opts ...Option) *RedisTracker {
	d := DefaultConfig()
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = d.DailyLimit
	}
	if cfg.Warmup == nil {
		cfg.Warmup = d.Warmup
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = d.KeyPrefix
	}
	t := &RedisTracker{
		rdb: rdb,
		cfg: cfg,
		loc: time.UTC,
		now: time.Now,
		log: zap.L().With(zap.String("component", "quota")),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "quota: parse redis url")
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "quota: ping redis")
	}
	return client, nil
}

func (t *RedisTracker) key(parts ...string) string {
	return t.cfg.KeyPrefix + ":" + strings.Join(parts, ":")
}

// day returns today's date key, the warm-up day index and the next reset.
// The account's start date is recorded on first use.
func (t *RedisTracker) day(ctx context.Context, accountID string) (string, int, time.Time, error) {
	now := t.now().In(t.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc)
	startKey := t.key(accountID, "start")

	if err := t.rdb.SetNX(ctx, startKey, today.Format(dayLayout), 0).Err(); err != nil {
		return "", 0, time.Time{}, eris.Wrap(err, "quota: record start")
	}
	raw, err := t.rdb.Get(ctx, startKey).Result()
	if err != nil {
		return "", 0, time.Time{}, eris.Wrap(err, "quota: read start")
	}
	start, err := time.ParseInLocation(dayLayout, raw, t.loc)
	if err != nil {
		return "", 0, time.Time{}, eris.Wrapf(err, "quota: bad start date %q", raw)
	}
	days := int(math.Round(today.Sub(start).Hours() / 24))
	return today.Format(dayLayout), days, today.AddDate(0, 0, 1), nil
}

// Snapshot returns today's budget without consuming it.
func (t *RedisTracker) Snapshot(ctx context.Context, accountID string) (Snapshot, error) {
	date, day, reset, err := t.day(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	used, err := t.rdb.Get(ctx, t.key(accountID, date)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, eris.Wrap(err, "quota: read counter")
	}
	return t.snapshot(accountID, day, used, reset), nil
}

// Consume takes one send from today's budget atomically. When nothing is
// left it returns the snapshot and ErrExhausted.
func (t *RedisTracker) Consume(ctx context.Context, accountID string) (Snapshot, error) {
	date, day, reset, err := t.day(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	limit := t.cfg.WarmupLimit(day)
	ttl := int((48 * time.Hour).Seconds())
	res, err := consumeScript.Run(ctx, t.rdb, []string{t.key(accountID, date)}, limit, ttl).Int64Slice()
	if err != nil {
		return Snapshot{}, eris.Wrap(err, "quota: consume")
	}
	snap := t.snapshot(accountID, day, int(res[1]), reset)
	if res[0] == 0 {
		t.log.Info("daily budget exhausted",
			zap.String("account_id", accountID),
			zap.Int("day", day),
			zap.Int("limit", limit),
		)
		return snap, eris.Wrap(ErrExhausted, accountID+" day "+strconv.Itoa(day))
	}
	return snap, nil
}

func (t *RedisTracker) snapshot(accountID string, day, used int, reset time.Time) Snapshot {
	limit := t.cfg.WarmupLimit(day)
	return Snapshot{
		AccountID: accountID,
		Day:       day,
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetAt:   reset.UTC(),
	}
}
