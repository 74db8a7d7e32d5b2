package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"travelapp/internal/utils"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const TopicEmails = "emails"

// Dispatcher is a Mailer that queues the email on a watermill topic instead
// of sending it inline. The email router does the delivery.
type Dispatcher struct {
	Publisher message.Publisher
}

func (d Dispatcher) Send(ctx context.Context, e Email) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("template", e.Template)
	msg.SetContext(ctx)
	if err := d.Publisher.Publish(TopicEmails, msg); err != nil {
		return fmt.Errorf("queue %s email: %w", e.Template, err)
	}
	return nil
}

// NewEmailRouter consumes queued emails and delivers them through mailer.
// Delivery failures are logged and acked: email is best effort.
func NewEmailRouter(sub message.Subscriber, mailer Mailer, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddNoPublisherHandler("send_email", TopicEmails, sub, func(msg *message.Message) error {
		var e Email
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			utils.LogError(msg.UUID, "email", "decode", err)
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mailer.Send(ctx, e); err != nil {
			utils.LogError(msg.UUID, "email", "deliver", err)
		}
		return nil
	})
	return router, nil
}

// StartEmailQueue runs the email router on g and returns a Dispatcher once the
// router has subscribed. The in-process channel drops messages published
// before that.
func StartEmailQueue(ctx context.Context, g *errgroup.Group, mailer Mailer, logger watermill.LoggerAdapter) (Dispatcher, error) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	router, err := NewEmailRouter(pubSub, mailer, logger)
	if err != nil {
		return Dispatcher{}, err
	}
	g.Go(func() error { return router.Run(ctx) })

	select {
	case <-router.Running():
		return Dispatcher{Publisher: pubSub}, nil
	case <-ctx.Done():
		return Dispatcher{}, ctx.Err()
	}
}
