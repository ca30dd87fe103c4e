package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Multi рассылает сообщение по всем каналам параллельно.
type Multi struct {
	senders []Sender
}

func NewMulti(senders ...Sender) *Multi {
	return &Multi{senders: senders}
}

// Send ждёт все каналы и возвращает первую ошибку. Сбой одного канала
// не отменяет остальные.
func (m *Multi) Send(ctx context.Context, msg Message) error {
	var g errgroup.Group
	for _, s := range m.senders {
		g.Go(func() error {
			return s.Send(ctx, msg)
		})
	}
	return g.Wait()
}
