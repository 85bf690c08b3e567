// Package player содержит доменную модель игрока Wordle: агрегат статистики,
// правила его изменения и интерфейсы хранилищ.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package player

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID - идентификатор пользователя Telegram.
type UserID int64

// IsValid проверяет, что UserID положительный.
func (u UserID) IsValid() bool {
	return u > 0
}

// ChatID - идентификатор чата Telegram. У групп он отрицательный.
type ChatID int64

// IsValid проверяет, что ChatID задан.
func (c ChatID) IsValid() bool {
	return c != 0
}

const (
	// MaxScoreAvg - верхняя граница среднего: проигрыш считается как 7 попыток.
	MaxScoreAvg = 7.0

	// MaxStat - верхняя граница счётчиков игр, серии и номера выпуска.
	MaxStat = 1_000_000

	// MaxUsernameLength - ограничение на отображаемое имя.
	MaxUsernameLength = 64
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate - статистика одного пользователя, общая для всех его чатов.
type Aggregate struct {
	// UserID - ключ агрегата.
	UserID UserID

	// Username - отображаемое имя. Меняется только командой /name.
	Username string

	// NumGames - количество игр, учтённых в среднем.
	NumGames int

	// Streak - текущая серия подряд сыгранных выпусков.
	Streak int

	// ScoreAvg - взвешенное среднее число попыток, от 0 до 7.
	ScoreAvg float64

	// LastGame - последний учтённый выпуск. Никогда не уменьшается.
	LastGame int

	// LastActiveChat - чат последней засчитанной отправки.
	LastActiveChat ChatID

	// MemberOfChats - чаты пользователя в порядке добавления, без повторов.
	MemberOfChats []ChatID

	// ToggleRetroactive - разрешены ли результаты старых выпусков.
	ToggleRetroactive bool

	// Warning - предупреждать ли об отклонённых старых результатах.
	Warning bool

	// Synthetic - тестовая запись, созданная администратором.
	Synthetic bool

	// Version - счётчик записей для оптимистичной блокировки.
	Version int64

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewAggregateParams - параметры для создания агрегата по первой отправке.
type NewAggregateParams struct {
	UserID    UserID
	ChatID    ChatID
	Username  string
	Edition   int
	Tries     float64
	Synthetic bool
	Now       time.Time
}

// NewAggregate создаёт агрегат из первого результата пользователя.
func NewAggregate(p NewAggregateParams) (*Aggregate, error) {
	if !p.UserID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !p.ChatID.IsValid() {
		return nil, shared.ErrInvalidChatID
	}
	name, err := NormalizeUsername(p.Username)
	if err != nil {
		return nil, err
	}
	if p.Edition < 0 || p.Edition > MaxStat {
		return nil, shared.ErrInvalidEdition
	}
	if !ValidTries(p.Tries) {
		return nil, shared.ErrInvalidTries
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Aggregate{
		UserID:            p.UserID,
		Username:          name,
		NumGames:          1,
		Streak:            1,
		ScoreAvg:          p.Tries,
		LastGame:          p.Edition,
		LastActiveChat:    p.ChatID,
		MemberOfChats:     []ChatID{p.ChatID},
		ToggleRetroactive: false,
		Warning:           true,
		Synthetic:         p.Synthetic,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BUSINESS METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsMemberOf проверяет, состоит ли пользователь в чате.
func (a *Aggregate) IsMemberOf(chat ChatID) bool {
	return slices.Contains(a.MemberOfChats, chat)
}

// OnStreak - серия показывается с огоньком, начиная со второй игры.
func (a *Aggregate) OnStreak() bool {
	return a.Streak > 1
}

// Clone возвращает независимую копию агрегата.
func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	c := *a
	c.MemberOfChats = slices.Clone(a.MemberOfChats)
	return &c
}

// Validate проверяет инварианты агрегата.
func (a *Aggregate) Validate() error {
	if !a.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if strings.TrimSpace(a.Username) == "" {
		return shared.ErrEmptyUsername
	}
	if a.ScoreAvg < 0 || a.ScoreAvg > MaxScoreAvg || math.IsNaN(a.ScoreAvg) {
		return shared.ErrInvalidAvg
	}
	if a.NumGames < 0 || a.Streak < 0 || a.LastGame < 0 {
		return shared.ErrNegativeStat
	}
	if a.NumGames > MaxStat || a.Streak > MaxStat || a.LastGame > MaxStat {
		return shared.ErrStatTooLarge
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ValidTries проверяет число попыток: 1..6 или 7 для проигрыша.
func ValidTries(tries float64) bool {
	return tries >= 1 && tries <= MaxScoreAvg
}

// NormalizeUsername обрезает пробелы и проверяет длину имени.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.ErrEmptyUsername
	}
	if r := []rune(name); len(r) > MaxUsernameLength {
		name = string(r[:MaxUsernameLength])
	}
	return name, nil
}
