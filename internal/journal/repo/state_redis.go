package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
	logx "github.com/voice-journal/core/pkg/logger"
)

// createScript writes the initial record unless the session already exists,
// and returns whatever is stored afterwards.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.call('HGETALL', KEYS[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('EXPIREAT', KEYS[1], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// updateScript merges the given fields into an existing record in one atomic
// step and returns the merged record. A missing record yields a nil reply and
// a closed one an error reply. Theme sets and asked questions are merged with
// the stored values the same way StatePatch.Rebase does.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
if redis.call('HGET', KEYS[1], 'session_phase') == '"closed"' then
  return redis.error_reply('CLOSED session is closed')
end

local function list(raw)
  if not raw then
    return {}
  end
  local ok, v = pcall(cjson.decode, raw)
  if not ok or type(v) ~= 'table' then
    return {}
  end
  return v
end

local function encode(t)
  if #t == 0 then
    return '[]'
  end
  return cjson.encode(t)
end

local function union(stored, incoming)
  local seen, out = {}, {}
  for _, src in ipairs({stored, incoming}) do
    for _, v in ipairs(src) do
      if not seen[v] then
        seen[v] = true
        table.insert(out, v)
      end
    end
  end
  return out, seen
end

local fields = {}
for i = 2, #ARGV, 2 do
  fields[ARGV[i]] = ARGV[i + 1]
end

if fields['explored_themes'] or fields['unexplored_themes'] then
  local explored, seen = union(list(redis.call('HGET', KEYS[1], 'explored_themes')), list(fields['explored_themes']))
  local unexplored = {}
  for _, v in ipairs(list(redis.call('HGET', KEYS[1], 'unexplored_themes'))) do
    if not seen[v] then
      seen[v] = true
      table.insert(unexplored, v)
    end
  end
  fields['explored_themes'] = encode(explored)
  fields['unexplored_themes'] = encode(unexplored)
end

if fields['asked_questions'] then
  local asked = union(list(redis.call('HGET', KEYS[1], 'asked_questions')), list(fields['asked_questions']))
  fields['asked_questions'] = encode(asked)
end

local args = {}
for k, v in pairs(fields) do
  table.insert(args, k)
  table.insert(args, v)
end
redis.call('HSET', KEYS[1], unpack(args))
redis.call('EXPIREAT', KEYS[1], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// closedReply is the error code updateScript answers with for a closed session.
const closedReply = "CLOSED"

// RedisStateRepository keeps one hash per session. Each state attribute is
// its own hash field so an update touches only the fields it carries.
type RedisStateRepository struct {
	rdb   redis.Cmdable
	grace time.Duration
	loc   *time.Location
	now   func() time.Time
}

func NewRedisStateRepository(rdb redis.Cmdable, grace time.Duration, loc *time.Location) *RedisStateRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &RedisStateRepository{rdb: rdb, grace: grace, loc: loc, now: time.Now}
}

func (r *RedisStateRepository) stateKey(key model.SessionKey) string {
	return fmt.Sprintf("journal:state:%s:%s:%s", key.UserID, key.Date, key.SessionID)
}

func (r *RedisStateRepository) Load(ctx context.Context, key model.SessionKey) (*model.ConversationState, error) {
	k := r.stateKey(key)

	fields, err := r.rdb.HGetAll(ctx, k).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to load session state from redis")
		return nil, errx.WrapRedis(err)
	}
	if len(fields) == 0 {
		return nil, errx.SessionNotFound(key.String())
	}

	state, err := decodeState(fields)
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to decode session state")
		return nil, err
	}
	return state, nil
}

func (r *RedisStateRepository) Create(ctx context.Context, key model.SessionKey) (*model.ConversationState, error) {
	k := r.stateKey(key)
	now := r.now().UTC()

	fields, err := encodeState(model.NewConversationState(key, now))
	if err != nil {
		return nil, err
	}

	args := append([]any{r.expireAt(key, now)}, hashArgs(fields)...)
	reply, err := createScript.Run(ctx, r.rdb, []string{k}, args...).Slice()
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to create session state in redis")
		return nil, errx.WrapRedis(err)
	}
	return r.decodeReply(k, reply)
}

func (r *RedisStateRepository) Update(ctx context.Context, key model.SessionKey, patch model.StatePatch) (*model.ConversationState, error) {
	k := r.stateKey(key)
	now := r.now().UTC()

	fields, err := encodePatch(patch, now)
	if err != nil {
		return nil, err
	}

	args := append([]any{r.expireAt(key, now)}, hashArgs(fields)...)
	reply, err := updateScript.Run(ctx, r.rdb, []string{k}, args...).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.SessionNotFound(key.String())
		}
		if strings.Contains(err.Error(), closedReply) {
			return nil, errx.InvalidTransition("session " + key.String() + " is closed")
		}
		logx.Error().Err(err).Str("key", k).Msg("failed to update session state in redis")
		return nil, errx.WrapRedis(err)
	}
	return r.decodeReply(k, reply)
}

func (r *RedisStateRepository) Delete(ctx context.Context, key model.SessionKey) error {
	k := r.stateKey(key)
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to delete session state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) expireAt(key model.SessionKey, now time.Time) string {
	return strconv.FormatInt(expiryFor(key.Date, r.loc, r.grace, now).Unix(), 10)
}

func (r *RedisStateRepository) decodeReply(k string, reply []any) (*model.ConversationState, error) {
	fields, err := pairsToMap(reply)
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("unexpected script reply")
		return nil, err
	}
	state, err := decodeState(fields)
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to decode session state")
		return nil, err
	}
	return state, nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
