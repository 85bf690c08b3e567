package postgres

import (
	"strconv"
	"strings"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONDITIONAL UPDATE BUILDER
// Translates player.Condition and player.Mutation into a single
// UPDATE ... WHERE ... RETURNING statement, so the predicate and the write are
// evaluated atomically by PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

type argList struct {
	args []any
}

// bind appends v and returns its placeholder.
func (a *argList) bind(v any) string {
	a.args = append(a.args, v)
	return "$" + strconv.Itoa(len(a.args))
}

// counterExpr combines an optional assignment with an increment.
func counterExpr(args *argList, column string, set *int, inc int) (string, bool) {
	if set == nil && inc == 0 {
		return "", false
	}
	expr := column
	if set != nil {
		expr = args.bind(*set)
	}
	if inc != 0 {
		expr = expr + " + " + args.bind(inc)
	}
	return expr, true
}

// buildConditionalUpdate returns the statement and its arguments.
func buildConditionalUpdate(id player.UserID, cond player.Condition, mut player.Mutation) (string, []any) {
	args := &argList{}
	idArg := args.bind(int64(id))

	var sets []string
	set := func(column, expr string) {
		sets = append(sets, column+" = "+expr)
	}

	if mut.Username != nil {
		set("username", args.bind(*mut.Username))
	}
	if expr, ok := counterExpr(args, "num_games", mut.NumGames, mut.IncNumGames); ok {
		set("num_games", expr)
	}
	if expr, ok := counterExpr(args, "streak", mut.Streak, mut.IncStreak); ok {
		set("streak", expr)
	}
	if mut.ScoreAvg != nil {
		set("score_avg", args.bind(*mut.ScoreAvg))
	}
	if mut.LastGame != nil {
		set("last_game", args.bind(*mut.LastGame))
	}
	if mut.LastActiveChat != nil {
		set("last_active_chat", args.bind(int64(*mut.LastActiveChat)))
	}
	if mut.ToggleRetroactive != nil {
		set("toggle_retroactive", args.bind(*mut.ToggleRetroactive))
	}
	if mut.Warning != nil {
		set("warning", args.bind(*mut.Warning))
	}

	if mut.AddChat != nil || mut.RemoveChat != nil {
		chats := "member_of_chats"
		if mut.RemoveChat != nil {
			chats = "array_remove(" + chats + ", " + args.bind(int64(*mut.RemoveChat)) + "::bigint)"
		}
		if mut.AddChat != nil {
			p := args.bind(int64(*mut.AddChat)) + "::bigint"
			chats = "CASE WHEN " + p + " = ANY(" + chats + ") THEN " + chats +
				" ELSE array_append(" + chats + ", " + p + ") END"
		}
		set("member_of_chats", chats)
	}

	set("version", "version + 1")
	set("updated_at", "NOW()")

	where := []string{"user_id = " + idArg}
	if cond.Version != nil {
		where = append(where, "version = "+args.bind(*cond.Version))
	}
	if cond.LastGame != nil {
		where = append(where, "last_game = "+args.bind(*cond.LastGame))
	}
	if cond.LastGameAtMost != nil {
		where = append(where, "last_game <= "+args.bind(*cond.LastGameAtMost))
	}
	if cond.LastActiveChatNot != nil {
		where = append(where, "last_active_chat <> "+args.bind(int64(*cond.LastActiveChatNot)))
	}

	var b strings.Builder
	b.WriteString("UPDATE players SET ")
	b.WriteString(strings.Join(sets, ", "))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" RETURNING version")

	return b.String(), args.args
}
