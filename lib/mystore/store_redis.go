package mystore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

type redisStore[T any] struct {
	mutex  sync.Mutex
	client *redis.Client
	prefix string
}

func newRedisStore[T any](c context.Context) (*redisStore[T], func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	err := client.Ping(c).Err()
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %s", err)
	}

	val := new(T)
	kind := fmt.Sprintf("%T", *val)
	if strings.Contains(kind, ".") {
		kind = strings.Split(kind, ".")[1]
	}

	return &redisStore[T]{
			client: client,
			prefix: kind + ":",
		}, func() {
			client.Close()
		}, nil
}

func (s *redisStore[T]) key(uid string) string {
	return s.prefix + uid
}

// RunInTransaction serializes writers within this process. Across processes
// redis remains last-writer-wins: concurrent peers converge via change
// notifications, not via compare-and-swap.
func (s *redisStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ctx := context.WithValue(c, ctxTransactionKey{}, true)

	return f(ctx)
}

func (s *redisStore[T]) Put(c context.Context, uid string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshalling entity %s with uid %s: %s", s.prefix, uid, err)
	}

	err = s.client.Set(c, s.key(uid), data, 0).Err()
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.prefix, uid, err)
	}

	return nil
}

func (s *redisStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	value := new(T)

	data, err := s.client.Get(c, s.key(uid)).Result()
	if err == redis.Nil {
		return *value, false, nil
	}
	if err != nil {
		return *value, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.prefix, uid, err)
	}

	err = json.Unmarshal([]byte(data), value)
	if err != nil {
		return *value, false, fmt.Errorf("error unmarshalling entity %s with uid %s: %s", s.prefix, uid, err)
	}

	return *value, true, nil
}

func (s *redisStore[T]) Delete(c context.Context, uid string) error {
	err := s.client.Del(c, s.key(uid)).Err()
	if err != nil {
		return fmt.Errorf("error deleting entity %s with uid %s: %s", s.prefix, uid, err)
	}

	return nil
}

func (s *redisStore[T]) List(c context.Context) ([]T, error) {
	result := []T{}

	iter := s.client.Scan(c, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(c) {
		data, err := s.client.Get(c, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error fetching entity %s: %s", iter.Val(), err)
		}

		value := new(T)
		err = json.Unmarshal([]byte(data), value)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling entity %s: %s", iter.Val(), err)
		}
		result = append(result, *value)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning entities %s: %s", s.prefix, err)
	}

	return result, nil
}

func (s *redisStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	return s.List(c)
}
