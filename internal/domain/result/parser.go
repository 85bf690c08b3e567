// Package result распознаёт результаты Wordle, которыми пользователи делятся в чатах.
// Пакет не имеет внешних зависимостей и не хранит состояния.
package result

import (
	"regexp"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxTries - число попыток в одной игре.
	MaxTries = 6

	// FailedTries - значение попыток для проигранной игры ("X/6").
	FailedTries = 7.0

	// MaxGridRows - максимум строк с плитками.
	MaxGridRows = 6

	// MaxEdition - верхняя граница номера выпуска, совпадает с player.MaxStat.
	MaxEdition = 1_000_000
)

// Плитки: 🟨 🟩 ⬛ ⬜, контрастная тема 🟧 🟦, и вариационный селектор U+FE0F,
// который некоторые клиенты добавляют к чёрному и белому квадратам.
const tiles = `\x{1F7E8}\x{1F7E9}\x{2B1B}\x{2B1C}\x{1F7E7}\x{1F7E6}\x{FE0F}`

var sharePattern = regexp.MustCompile(
	`^Wordle\s+(?P<edition>\d{1,3}(?:[,.]\d{3})+|\d+)\s+(?P<tries>[1-6X])/6(?P<hard>\*)?[ \t]*\r?\n[ \t]*\r?\n` +
		`(?P<grid>(?:[` + tiles + `]+[ \t]*(?:\r?\n|$)){1,6})`,
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result - распознанный результат одной игры.
type Result struct {
	// Edition - номер ежедневной головоломки.
	Edition int

	// Tries - число попыток от 1 до 6, либо 7.0 для проигрыша.
	Tries float64

	// Failed - true, если игра не решена ("X/6").
	Failed bool

	// HardMode - результат отмечен звёздочкой (сложный режим).
	HardMode bool

	// Grid - строки с плитками в исходном порядке.
	Grid []string
}

// Parse извлекает результат из текста сообщения.
// Если текст не является результатом Wordle, возвращает false. Это не ошибка:
// большинство сообщений в группе результатами не являются.
func Parse(text string) (Result, bool) {
	m := sharePattern.FindStringSubmatch(strings.TrimLeft(text, " \t\r\n"))
	if m == nil {
		return Result{}, false
	}

	raw := strings.NewReplacer(",", "", ".", "").Replace(m[sharePattern.SubexpIndex("edition")])
	edition, err := strconv.Atoi(raw)
	if err != nil || edition < 0 || edition > MaxEdition {
		return Result{}, false
	}

	res := Result{
		Edition:  edition,
		HardMode: m[sharePattern.SubexpIndex("hard")] != "",
		Grid:     splitGrid(m[sharePattern.SubexpIndex("grid")]),
	}

	tries := m[sharePattern.SubexpIndex("tries")]
	if tries == "X" {
		res.Tries = FailedTries
		res.Failed = true
	} else {
		n, _ := strconv.Atoi(tries)
		res.Tries = float64(n)
	}

	return res, true
}

// IsShare - быстрая проверка без разбора полей.
func IsShare(text string) bool {
	_, ok := Parse(text)
	return ok
}

func splitGrid(block string) []string {
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	rows := make([]string, 0, MaxGridRows)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	return rows
}
