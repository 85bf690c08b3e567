package presenter

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Таблица чата: место, имя, игры, серия, средний балл.
// Меньше средний балл - выше место.
// ══════════════════════════════════════════════════════════════════════════════

// maxNameWidth - длинные имена обрезаются, чтобы таблица влезала в экран телефона.
const maxNameWidth = 14

// FormatLeaderboard форматирует ответ на /leaderboard.
func FormatLeaderboard(lb *query.Leaderboard) *View {
	var sb strings.Builder
	sb.WriteString(Bold("Leaderboard"))
	sb.WriteString("\n")
	sb.WriteString(Pre(LeaderboardTable(lb.Rows)))

	// Если запросивший не попал в выводимые строки, показываем его место отдельно.
	if lb.RequesterRank > len(lb.Rows) {
		sb.WriteString("\n")
		sb.WriteString(Escape(fmt.Sprintf("Your rank: %d of %d", lb.RequesterRank, lb.Total)))
	}

	return &View{Text: sb.String(), ParseMode: ParseMode}
}

// LeaderboardTable строит выровненную таблицу без разметки.
func LeaderboardTable(rows []query.LeaderboardRow) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 1, ' ', 0)

	fmt.Fprintln(tw, "\tName\tGms\t🔥\tAvg.")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			row.Rank,
			truncate(row.Username, maxNameWidth),
			row.NumGames,
			row.Streak,
			FormatAvg(row.ScoreAvg),
		)
	}
	_ = tw.Flush()

	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
