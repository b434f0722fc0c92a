// Package listener applies shopping list commands consumed from Kafka, so
// other devices can push recipes and items onto the list.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"shoplist/internal/logger"
	"shoplist/internal/merge"
	"shoplist/internal/metrics"
	"shoplist/internal/model"
)

// Command types.
const (
	TypeAddRecipe    = "add_recipe"
	TypeAddItem      = "add_item"
	TypeClearChecked = "clear_checked"
)

// Command is the JSON value of one message.
type Command struct {
	Type     string `json:"type"`
	RecipeID int64  `json:"recipeId,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Service is the part of the shopping service commands drive.
type Service interface {
	AddRecipe(recipeID int64) (merge.Result, error)
	AddItem(name string) (model.ShoppingListItem, error)
	ClearChecked() (int, error)
}

// messageReader abstracts ck.Consumer for testability.
type messageReader interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	CommitMessage(m *ck.Message) ([]ck.TopicPartition, error)
	Close() error
}

type Consumer struct {
	rd   messageReader
	svc  Service
	m    *metrics.Registry
	poll time.Duration
}

// NewConsumer subscribes a confluent consumer in groupID to topic.
func NewConsumer(bootstrap, groupID, topic string, svc Service, m *metrics.Registry) (*Consumer, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return newConsumerWith(c, svc, m), nil
}

func newConsumerWith(rd messageReader, svc Service, m *metrics.Registry) *Consumer {
	return &Consumer{rd: rd, svc: svc, m: m, poll: 500 * time.Millisecond}
}

// Run consumes until ctx is done, then closes the consumer. Each message is
// committed once handled, including rejected ones, so a bad command is not
// redelivered forever.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.rd.Close()
	for ctx.Err() == nil {
		msg, err := c.rd.ReadMessage(c.poll)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.Code() == ck.ErrTimedOut {
				continue
			}
			logger.Warn("listener: read failed", zap.Error(err))
			continue
		}
		typ, result := c.handle(msg.Value)
		if c.m != nil {
			c.m.CommandsConsumed.WithLabelValues(typ, result).Inc()
		}
		if _, err := c.rd.CommitMessage(msg); err != nil {
			logger.Warn("listener: commit failed", zap.Error(err))
		}
	}
	return nil
}

// handle applies one command and returns its type and outcome label.
func (c *Consumer) handle(value []byte) (string, string) {
	var cmd Command
	if err := json.Unmarshal(value, &cmd); err != nil {
		logger.Warn("listener: bad command", zap.ByteString("value", value), zap.Error(err))
		return "invalid", "rejected"
	}
	var err error
	switch cmd.Type {
	case TypeAddRecipe:
		var res merge.Result
		res, err = c.svc.AddRecipe(cmd.RecipeID)
		if err == nil {
			logger.Info("listener: recipe added", zap.Int64("recipe_id", cmd.RecipeID), zap.Int("items", len(res.Items)))
		}
	case TypeAddItem:
		_, err = c.svc.AddItem(cmd.Name)
	case TypeClearChecked:
		_, err = c.svc.ClearChecked()
	default:
		logger.Warn("listener: unknown command type", zap.String("type", cmd.Type))
		return "unknown", "rejected"
	}
	if err != nil {
		logger.Warn("listener: command failed", zap.String("type", cmd.Type), zap.Error(err))
		return cmd.Type, "error"
	}
	return cmd.Type, "ok"
}
