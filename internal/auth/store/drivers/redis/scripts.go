package redis

import "github.com/redis/go-redis/v9"

// Every multi-key change runs as a Lua script so the user hash and its
// secondary indexes never disagree.
//
// Layout (p = prefix):
//
//	p:user:<id>        hash  id name email password_hash refresh_token
//	                         refresh_expires_at created_at updated_at
//	p:email:<email>    string user id
//	p:refresh:<token>  string user id, only for the current token
//	p:refresh_exp      zset  user id scored by refresh expiry (unix seconds)

const (
	statusMissing  int64 = -1
	statusMismatch int64 = 0
	statusOK       int64 = 1
)

// KEYS: user, email index, expiry zset
// ARGV: refresh prefix, id, name, email, password_hash, refresh_token,
// refresh_expires_at, created_at, updated_at
const createUserScript = `
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2])
redis.call("HSET", KEYS[1],
  "id", ARGV[2],
  "name", ARGV[3],
  "email", ARGV[4],
  "password_hash", ARGV[5],
  "refresh_token", ARGV[6],
  "refresh_expires_at", ARGV[7],
  "created_at", ARGV[8],
  "updated_at", ARGV[9])
if ARGV[6] ~= "" then
  redis.call("SET", ARGV[1] .. ARGV[6], ARGV[2])
end
if ARGV[7] ~= "" then
  redis.call("ZADD", KEYS[3], ARGV[7], ARGV[2])
end
return 1
`

// KEYS: user, expiry zset
// ARGV: refresh prefix, id, mode ("set" or "cas"), expected, next,
// refresh_expires_at ("" to clear), updated_at
const setRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = redis.call("HGET", KEYS[1], "refresh_token") or ""
if ARGV[3] == "cas" and current ~= ARGV[4] then
  return 0
end
if current ~= "" then
  redis.call("DEL", ARGV[1] .. current)
end
redis.call("HSET", KEYS[1],
  "refresh_token", ARGV[5],
  "refresh_expires_at", ARGV[6],
  "updated_at", ARGV[7])
if ARGV[5] ~= "" then
  redis.call("SET", ARGV[1] .. ARGV[5], ARGV[2])
end
if ARGV[6] ~= "" then
  redis.call("ZADD", KEYS[2], ARGV[6], ARGV[2])
else
  redis.call("ZREM", KEYS[2], ARGV[2])
end
return 1
`

// KEYS: expiry zset
// ARGV: now (unix seconds), user prefix, refresh prefix, updated_at
const clearExpiredScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local cleared = 0
for _, id in ipairs(ids) do
  local user = ARGV[2] .. id
  if redis.call("EXISTS", user) == 1 then
    local token = redis.call("HGET", user, "refresh_token") or ""
    if token ~= "" then
      redis.call("DEL", ARGV[3] .. token)
    end
    redis.call("HSET", user, "refresh_token", "", "refresh_expires_at", "", "updated_at", ARGV[4])
    cleared = cleared + 1
  end
  redis.call("ZREM", KEYS[1], id)
end
return cleared
`

// KEYS: user, expiry zset
// ARGV: email prefix, refresh prefix, id
const deleteUserScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local email = redis.call("HGET", KEYS[1], "email") or ""
local token = redis.call("HGET", KEYS[1], "refresh_token") or ""
if email ~= "" then
  redis.call("DEL", ARGV[1] .. email)
end
if token ~= "" then
  redis.call("DEL", ARGV[2] .. token)
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[3])
return 1
`

var (
	createUserLua   = redis.NewScript(createUserScript)
	setRefreshLua   = redis.NewScript(setRefreshScript)
	clearExpiredLua = redis.NewScript(clearExpiredScript)
	deleteUserLua   = redis.NewScript(deleteUserScript)
)
