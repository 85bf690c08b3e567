package player

import (
	"slices"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITION
// Предикат условной записи. Проверяется хранилищем в момент записи.
// ══════════════════════════════════════════════════════════════════════════════

// Condition - набор предикатов над сохранённым агрегатом. nil означает "не проверять".
// Пустое условие выполняется всегда.
type Condition struct {
	// Version - запись не менялась с момента чтения.
	Version *int64

	// LastGame - последний выпуск равен значению.
	LastGame *int

	// LastGameAtMost - последний выпуск не больше значения (для затухания серии).
	LastGameAtMost *int

	// LastActiveChatNot - последний активный чат отличается от значения.
	LastActiveChatNot *ChatID
}

// AtVersion добавляет проверку версии.
func (c Condition) AtVersion(v int64) Condition {
	c.Version = &v
	return c
}

// WithLastGame добавляет проверку точного выпуска.
func (c Condition) WithLastGame(edition int) Condition {
	c.LastGame = &edition
	return c
}

// WithLastGameAtMost добавляет верхнюю границу выпуска.
func (c Condition) WithLastGameAtMost(edition int) Condition {
	c.LastGameAtMost = &edition
	return c
}

// WithLastActiveChatNot добавляет проверку чата.
func (c Condition) WithLastActiveChatNot(chat ChatID) Condition {
	c.LastActiveChatNot = &chat
	return c
}

// IsEmpty - условие без предикатов.
func (c Condition) IsEmpty() bool {
	return c.Version == nil && c.LastGame == nil && c.LastGameAtMost == nil && c.LastActiveChatNot == nil
}

// Matches проверяет условие на агрегате.
func (c Condition) Matches(a *Aggregate) bool {
	if a == nil {
		return false
	}
	if c.Version != nil && a.Version != *c.Version {
		return false
	}
	if c.LastGame != nil && a.LastGame != *c.LastGame {
		return false
	}
	if c.LastGameAtMost != nil && a.LastGame > *c.LastGameAtMost {
		return false
	}
	if c.LastActiveChatNot != nil && a.LastActiveChat == *c.LastActiveChatNot {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION
// Изменения полей агрегата. Присваивания применяются раньше инкрементов.
// ══════════════════════════════════════════════════════════════════════════════

// Mutation описывает изменения полей. nil означает "не менять".
type Mutation struct {
	Username          *string
	NumGames          *int
	Streak            *int
	ScoreAvg          *float64
	LastGame          *int
	LastActiveChat    *ChatID
	ToggleRetroactive *bool
	Warning           *bool

	// IncNumGames и IncStreak - покомпонентные инкременты.
	IncNumGames int
	IncStreak   int

	// AddChat добавляет чат в множество, если его там нет.
	AddChat *ChatID

	// RemoveChat убирает чат из множества.
	RemoveChat *ChatID
}

// SetUsername возвращает мутацию с новым именем.
func (m Mutation) SetUsername(name string) Mutation {
	m.Username = &name
	return m
}

// SetNumGames возвращает мутацию с новым числом игр.
func (m Mutation) SetNumGames(n int) Mutation {
	m.NumGames = &n
	return m
}

// SetStreak возвращает мутацию с новой серией.
func (m Mutation) SetStreak(n int) Mutation {
	m.Streak = &n
	return m
}

// SetScoreAvg возвращает мутацию с новым средним.
func (m Mutation) SetScoreAvg(avg float64) Mutation {
	m.ScoreAvg = &avg
	return m
}

// SetLastGame возвращает мутацию с новым последним выпуском.
func (m Mutation) SetLastGame(edition int) Mutation {
	m.LastGame = &edition
	return m
}

// SetLastActiveChat возвращает мутацию с новым активным чатом.
func (m Mutation) SetLastActiveChat(chat ChatID) Mutation {
	m.LastActiveChat = &chat
	return m
}

// SetToggleRetroactive возвращает мутацию с новым значением флага.
func (m Mutation) SetToggleRetroactive(v bool) Mutation {
	m.ToggleRetroactive = &v
	return m
}

// SetWarning возвращает мутацию с новым значением флага.
func (m Mutation) SetWarning(v bool) Mutation {
	m.Warning = &v
	return m
}

// IncrementGames увеличивает число игр.
func (m Mutation) IncrementGames(delta int) Mutation {
	m.IncNumGames += delta
	return m
}

// IncrementStreak увеличивает серию.
func (m Mutation) IncrementStreak(delta int) Mutation {
	m.IncStreak += delta
	return m
}

// JoinChat добавляет чат в множество участия.
func (m Mutation) JoinChat(chat ChatID) Mutation {
	m.AddChat = &chat
	return m
}

// LeaveChat убирает чат из множества участия.
func (m Mutation) LeaveChat(chat ChatID) Mutation {
	m.RemoveChat = &chat
	return m
}

// IsEmpty - мутация ничего не меняет.
func (m Mutation) IsEmpty() bool {
	return m.Username == nil && m.NumGames == nil && m.Streak == nil && m.ScoreAvg == nil &&
		m.LastGame == nil && m.LastActiveChat == nil && m.ToggleRetroactive == nil &&
		m.Warning == nil && m.IncNumGames == 0 && m.IncStreak == 0 &&
		m.AddChat == nil && m.RemoveChat == nil
}

// Apply применяет мутацию к агрегату, увеличивает версию и ставит UpdatedAt.
// Используется хранилищами, которые не выражают мутацию на своём языке запросов.
func (m Mutation) Apply(a *Aggregate, now time.Time) {
	if m.Username != nil {
		a.Username = *m.Username
	}
	if m.NumGames != nil {
		a.NumGames = *m.NumGames
	}
	if m.Streak != nil {
		a.Streak = *m.Streak
	}
	if m.ScoreAvg != nil {
		a.ScoreAvg = *m.ScoreAvg
	}
	if m.LastGame != nil {
		a.LastGame = *m.LastGame
	}
	if m.LastActiveChat != nil {
		a.LastActiveChat = *m.LastActiveChat
	}
	if m.ToggleRetroactive != nil {
		a.ToggleRetroactive = *m.ToggleRetroactive
	}
	if m.Warning != nil {
		a.Warning = *m.Warning
	}

	a.NumGames += m.IncNumGames
	a.Streak += m.IncStreak

	if m.AddChat != nil && !slices.Contains(a.MemberOfChats, *m.AddChat) {
		a.MemberOfChats = append(a.MemberOfChats, *m.AddChat)
	}
	if m.RemoveChat != nil {
		a.MemberOfChats = slices.DeleteFunc(a.MemberOfChats, func(c ChatID) bool {
			return c == *m.RemoveChat
		})
	}

	a.Version++
	a.UpdatedAt = now
}
