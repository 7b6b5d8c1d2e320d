package database

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns a search term into an ILIKE pattern matching it
// literally anywhere in the value. NULL stays NULL.
func containsPattern(term pgtype.Text) pgtype.Text {
	if !term.Valid {
		return term
	}
	return pgtype.Text{String: "%" + likeEscaper.Replace(term.String) + "%", Valid: true}
}
