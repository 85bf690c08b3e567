// Package query contains read operations following CQRS pattern.
// Queries return snapshots of aggregates. The only writes they perform are
// lazy streak decay and joining the reader to the current chat.
package query

import (
	"context"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LAZY DECAY
// Серия сбрасывается при чтении, а не по расписанию.
// ══════════════════════════════════════════════════════════════════════════════

// decayer сбрасывает серию тем, кто пропустил выпуск.
type decayer struct {
	repo player.Repository
	now  func() time.Time
}

// apply сбрасывает серию, если она прервана, и сохраняет это.
// Условие по LastGame защищает от гонки с новой отправкой: если результат
// успел прийти, запись не меняется, а агрегат перечитывается.
func (d decayer) apply(ctx context.Context, agg *player.Aggregate, latest int) (*player.Aggregate, bool, error) {
	if !player.DecayDue(agg, latest) {
		return agg, false, nil
	}

	cond := player.Condition{}.WithLastGameAtMost(player.DecayThreshold(latest))
	mut := player.Mutation{}.SetStreak(0)

	ok, err := d.repo.ConditionalUpdate(ctx, agg.UserID, cond, mut)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		fresh, err := d.repo.Get(ctx, agg.UserID)
		if err != nil {
			return nil, false, err
		}
		return fresh, false, nil
	}

	mut.Apply(agg, d.now())
	return agg, true, nil
}

// join добавляет чат в список участия, если его там нет.
func (d decayer) join(ctx context.Context, agg *player.Aggregate, chat player.ChatID) error {
	if !chat.IsValid() || agg.IsMemberOf(chat) {
		return nil
	}

	mut := player.Mutation{}.JoinChat(chat)
	if _, err := d.repo.ConditionalUpdate(ctx, agg.UserID, player.Condition{}, mut); err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrPlayerNotFound
		}
		return err
	}
	mut.Apply(agg, d.now())
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
