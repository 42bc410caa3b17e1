package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const (
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is used when a key is missing.
	RedisNotFoundMessage = "redis key not found"
)

// WrapRedis maps Redis errors to AppError with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
