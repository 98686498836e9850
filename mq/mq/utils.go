package mq

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Subscriber is any service that hands out a per-subscriber channel of M.
type Subscriber[M any] interface {
	Subscribe() (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes to service and forwards transformed messages
// to outputStream until ctx ends or the service closes the subscription.
// transformFunc may skip a message or fail it; both drop the message.
// outputStream is closed on exit.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	ctx context.Context,
	service S,
	transformFunc func(msg M) (O, bool, error),
	outputStream chan<- O,
) error {
	uid, inputCh, err := service.Subscribe()
	if err != nil {
		close(outputStream)
		return err
	}

	go func() {
		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				slog.Debug("de-subscribe", "subscriber", uid, "err", err)
			}
			close(outputStream)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					// parent close channel
					return
				}

				output, skip, err := transformFunc(msg)
				if err != nil {
					slog.Warn("dropping message that failed to transform", "subscriber", uid, "err", err)
					continue
				}
				if skip {
					continue
				}

				select {
				case outputStream <- output:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
