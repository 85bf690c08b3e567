package player

import (
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// Классификация новой отправки относительно сохранённого агрегата.
// ══════════════════════════════════════════════════════════════════════════════

// Transition - ветка машины состояний обработки результата.
type Transition int

const (
	// TransitionCreate - агрегата нет, создаётся новая запись.
	TransitionCreate Transition = iota
	// TransitionSameEdition - выпуск уже учтён, обновляется только участие.
	TransitionSameEdition
	// TransitionNextEdition - следующий выпуск, серия продолжается.
	TransitionNextEdition
	// TransitionGappedEdition - пропущен хотя бы один выпуск, серия начинается заново.
	TransitionGappedEdition
	// TransitionOlderAccepted - старый выпуск при включённом ретро-режиме.
	TransitionOlderAccepted
	// TransitionOlderRejected - старый выпуск при выключенном ретро-режиме.
	TransitionOlderRejected
)

// String возвращает имя перехода для логов и метрик.
func (t Transition) String() string {
	switch t {
	case TransitionCreate:
		return "create"
	case TransitionSameEdition:
		return "same_edition"
	case TransitionNextEdition:
		return "next_edition"
	case TransitionGappedEdition:
		return "gapped_edition"
	case TransitionOlderAccepted:
		return "older_accepted"
	case TransitionOlderRejected:
		return "older_rejected"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Classify определяет ветку для выпуска. nil агрегат означает первую отправку.
// Сравнение идёт через разность, LastGame+1 не вычисляется.
func Classify(a *Aggregate, edition int) Transition {
	switch {
	case a == nil:
		return TransitionCreate
	case edition == a.LastGame:
		return TransitionSameEdition
	case edition > a.LastGame && edition-a.LastGame == 1:
		return TransitionNextEdition
	case edition > a.LastGame:
		return TransitionGappedEdition
	case a.ToggleRetroactive:
		return TransitionOlderAccepted
	default:
		return TransitionOlderRejected
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN
// ══════════════════════════════════════════════════════════════════════════════

// Plan - условная запись, которую нужно выполнить для отправки.
type Plan struct {
	Transition Transition
	Condition  Condition
	Mutation   Mutation
}

// NeedsWrite - план что-то меняет в хранилище.
func (p Plan) NeedsWrite() bool {
	return !p.Mutation.IsEmpty()
}

// PlanSubmission строит условную запись для существующего агрегата.
// Для TransitionCreate план пустой: запись создаётся через NewAggregate.
//
// Пересчёт среднего зависит от прочитанных NumGames и ScoreAvg, поэтому такие
// записи защищены версией. Повтор того же выпуска защищён естественным
// предикатом по последнему чату и не требует версии.
func PlanSubmission(a *Aggregate, chat ChatID, edition int, tries float64) Plan {
	t := Classify(a, edition)
	plan := Plan{Transition: t}

	switch t {
	case TransitionSameEdition:
		switch {
		case a.LastActiveChat != chat:
			plan.Condition = Condition{}.WithLastActiveChatNot(chat)
			plan.Mutation = Mutation{}.SetLastActiveChat(chat).JoinChat(chat)
		case !a.IsMemberOf(chat):
			// чат был очищен через /clear chat, а пользователь повторил отправку
			plan.Mutation = Mutation{}.JoinChat(chat)
		}

	case TransitionNextEdition:
		plan.Condition = Condition{}.AtVersion(a.Version)
		plan.Mutation = Mutation{}.
			IncrementGames(1).
			IncrementStreak(1).
			SetScoreAvg(WeightedAverage(a.ScoreAvg, a.NumGames, tries)).
			SetLastGame(edition).
			SetLastActiveChat(chat).
			JoinChat(chat)

	case TransitionGappedEdition:
		plan.Condition = Condition{}.AtVersion(a.Version)
		plan.Mutation = Mutation{}.
			IncrementGames(1).
			SetStreak(1).
			SetScoreAvg(WeightedAverage(a.ScoreAvg, a.NumGames, tries)).
			SetLastGame(edition).
			SetLastActiveChat(chat).
			JoinChat(chat)

	case TransitionOlderAccepted:
		plan.Condition = Condition{}.AtVersion(a.Version)
		plan.Mutation = Mutation{}.
			IncrementGames(1).
			SetScoreAvg(WeightedAverage(a.ScoreAvg, a.NumGames, tries)).
			JoinChat(chat)
	}

	return plan
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE MATH
// ══════════════════════════════════════════════════════════════════════════════

// WeightedAverage добавляет одну игру к среднему по n играм.
func WeightedAverage(avg float64, n int, tries float64) float64 {
	if n <= 0 {
		return tries
	}
	return (avg*float64(n) + tries) / float64(n+1)
}

// MergeHistory объединяет сохранённую статистику со статистикой,
// накопленной до подключения бота.
// Возвращает ErrInvalidAvg для oldAvg > 7, ErrStatTooLarge, если сумма игр
// больше MaxStat, и ErrInvalidInput, если игр не остаётся.
func MergeHistory(avg float64, n int, oldAvg float64, oldGames int) (int, float64, error) {
	if oldAvg > MaxScoreAvg {
		return 0, 0, shared.ErrInvalidAvg
	}
	if oldAvg < 0 || oldGames < 0 {
		return 0, 0, shared.ErrNegativeStat
	}

	if oldGames > MaxStat || n > MaxStat-oldGames {
		return 0, 0, shared.ErrStatTooLarge
	}

	games := n + oldGames
	if games == 0 {
		return 0, 0, shared.NewDomainError("player", "MergeHistory", shared.ErrInvalidInput, "merged history has no games")
	}

	merged := (oldAvg*float64(oldGames) + avg*float64(n)) / float64(games)
	return games, merged, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK DECAY
// ══════════════════════════════════════════════════════════════════════════════

// DecayThreshold - последний выпуск, при котором серия уже прервана.
func DecayThreshold(latest int) int {
	return latest - 2
}

// DecayDue - пользователь пропустил вчерашний выпуск, а серия ещё не сброшена.
func DecayDue(a *Aggregate, latest int) bool {
	return a.Streak > 0 && a.LastGame <= DecayThreshold(latest)
}
