package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// statusUpdate is the payload pushed to the originating client when an
// order reaches a terminal state.
type statusUpdate struct {
	Username string `json:"username"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
}

// NotifyOrderStatus publishes a terminal status update on the user's
// channel. Whatever serves the frontend subscribes to
// order-status:{username} and relays the message.
func (c *Client) NotifyOrderStatus(ctx context.Context, username string, orderID uuid.UUID, status string) error {
	payload, err := json.Marshal(statusUpdate{
		Username: username,
		OrderID:  orderID.String(),
		Status:   status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal status update: %w", err)
	}

	channel := fmt.Sprintf("order-status:%s", username)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status update: %w", err)
	}
	return nil
}
