package player

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// PurgeScope задаёт, какие записи удаляет массовая очистка.
type PurgeScope string

const (
	// PurgeSynthetic - только тестовые записи администратора.
	PurgeSynthetic PurgeScope = "synthetic"
	// PurgeAll - все записи.
	PurgeAll PurgeScope = "all"
)

// IsValid проверяет область очистки.
func (s PurgeScope) IsValid() bool {
	return s == PurgeSynthetic || s == PurgeAll
}

// Repository определяет операции над агрегатами игроков.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Get возвращает агрегат пользователя.
	// Возвращает ErrPlayerNotFound, если записи нет.
	Get(ctx context.Context, id UserID) (*Aggregate, error)

	// Create сохраняет новый агрегат.
	// Возвращает ErrPlayerAlreadyExists, если запись уже есть.
	Create(ctx context.Context, agg *Aggregate) error

	// ConditionalUpdate применяет мутацию, только если условие выполняется
	// на сохранённом значении в момент записи. Проверка и запись атомарны.
	// Возвращает false без ошибки, если условие не выполнено.
	// Возвращает ErrPlayerNotFound, если записи нет.
	ConditionalUpdate(ctx context.Context, id UserID, cond Condition, mut Mutation) (bool, error)

	// Delete удаляет агрегат.
	// Возвращает ErrPlayerNotFound, если записи нет.
	Delete(ctx context.Context, id UserID) error

	// ─────────────────────────────────────────────────────────────────────────
	// Chat Operations
	// ─────────────────────────────────────────────────────────────────────────

	// ListByChat возвращает участников чата в порядке создания записей.
	ListByChat(ctx context.Context, chat ChatID) ([]*Aggregate, error)

	// RemoveChat убирает чат из множеств участия всех пользователей.
	// Возвращает число изменённых записей.
	RemoveChat(ctx context.Context, chat ChatID) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Purge удаляет записи в заданной области и возвращает их число.
	Purge(ctx context.Context, scope PurgeScope) (int, error)
}

// EditionCounter - глобальный номер последнего известного выпуска.
// Счётчик создаётся лениво со значением 0.
type EditionCounter interface {
	// Latest возвращает текущее значение.
	Latest(ctx context.Context) (int, error)

	// Advance атомарно записывает max(текущее, edition) и возвращает итог.
	Advance(ctx context.Context, edition int) (int, error)

	// Reset безусловно устанавливает значение. Только для администратора.
	Reset(ctx context.Context, edition int) error
}
