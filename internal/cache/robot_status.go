package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/iayvob/palboti-backend/internal/model"
)

// robotStatusTTL bounds staleness when the bridge stops refreshing the key
const robotStatusTTL = 2 * time.Minute

func robotStatusKey(robotID string) string {
	return "robot:status:" + robotID
}

// SetRobotStatus caches the latest known status for a robot
func SetRobotStatus(ctx context.Context, robot *model.Robot) error {
	if Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	data, err := json.Marshal(robot)
	if err != nil {
		return fmt.Errorf("failed to marshal robot status: %w", err)
	}

	return Client.Set(ctx, robotStatusKey(robot.ID), data, robotStatusTTL).Err()
}

// GetRobotStatus returns the cached status for a robot, or (nil, nil) on a
// cache miss
func GetRobotStatus(ctx context.Context, robotID string) (*model.Robot, error) {
	if Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	data, err := Client.Get(ctx, robotStatusKey(robotID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read robot status cache: %w", err)
	}

	var robot model.Robot
	if err := json.Unmarshal(data, &robot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached robot status: %w", err)
	}

	return &robot, nil
}
