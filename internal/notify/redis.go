package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"callrelay/internal/directory"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes incoming-call payloads to the push gateway
// channel of the callee's registered device. The gateway consuming these
// channels (and the actual device delivery) is outside this service.
type RedisNotifier struct {
	rdb *redis.Client
	dir directory.Directory
}

func NewRedisNotifier(rdb *redis.Client, dir directory.Directory) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, dir: dir}
}

func pushChannel(token string) string {
	return "push:device:" + token
}

func (n *RedisNotifier) Notify(ctx context.Context, calleeID, callID, callerName string) (bool, error) {
	u, err := n.dir.Resolve(ctx, calleeID)
	if errors.Is(err, directory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("notify: resolve callee: %w", err)
	}
	if u.PushToken == "" {
		// No registered device; the callee may still poll.
		return false, nil
	}

	body, err := json.Marshal(Payload{
		Type:       payloadTypeIncomingCall,
		CallID:     callID,
		CallerName: callerName,
	})
	if err != nil {
		return false, err
	}

	if err := n.rdb.Publish(ctx, pushChannel(u.PushToken), body).Err(); err != nil {
		return false, fmt.Errorf("notify: publish: %w", err)
	}
	return true, nil
}
