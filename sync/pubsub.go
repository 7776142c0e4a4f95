package sync

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/utils"
)

// PubSubPushEnvelope is the push-subscription wrapper Google wraps
// around the published message.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// SyncRunPayload asks a worker for one full convergence pass.
type SyncRunPayload struct {
	Trigger string `json:"trigger"`
}

func publish(ctx context.Context, topic *pubsub.Topic, data []byte) (string, error) {
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	return res.Get(ctx)
}

// PublishSyncRun hands a full pass off to whichever worker holds the
// push subscription.
func PublishSyncRun(ctx context.Context, trigger string) error {
	topicName := strings.TrimSpace(os.Getenv("SYNC_RUN_TOPIC"))
	if topicName == "" {
		topicName = "lalantsika-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	raw, err := utils.MarshalToJSON(SyncRunPayload{Trigger: trigger})
	if err != nil {
		return err
	}
	_, err = publish(ctx, topic, []byte(raw))
	return err
}

// PubSubPushHandler runs a full pass when the subscription delivers a
// run request. Bad envelopes are acked with 204 so the subscription
// does not redeliver garbage forever.
func (e *Engine) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_SYNC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := utils.UnmarshalFromJSON(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncRunPayload
		if err := utils.UnmarshalFromJSON(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}

		e.RunFullPass(c.Request.Context())
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
