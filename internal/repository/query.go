package repository

import (
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// UserColumns is the column list every store selects for a model.User, in the
// order its scan function expects.
var UserColumns = []string{
	"id", "email", "password_hash", "name", "role", "bio", "skills",
	"experience", "hourly_rate", "profile_image", "is_active", "created_at", "updated_at",
}

// MentorsQuery builds the ListMentors SELECT. The placeholder format is the
// only thing that differs between SQLite (?) and Postgres ($1).
//
// Skills are stored as a JSON array in a text column, so "has skill X" is a
// LIKE on the JSON-encoded string "X" including its quotes. That matches whole
// array elements only: "Go" does not match "Google".
func MentorsQuery(f MentorFilter, ph sq.PlaceholderFormat) sq.SelectBuilder {
	q := sq.Select(UserColumns...).
		From("users").
		Where(sq.Eq{"role": "mentor", "is_active": true}).
		PlaceholderFormat(ph)

	if skill := strings.TrimSpace(f.Skill); skill != "" {
		q = q.Where(sq.Expr(`skills LIKE ? ESCAPE '\'`, SkillPattern(skill)))
	}

	switch f.OrderBy {
	case OrderByName:
		q = q.OrderBy("name ASC", "id ASC")
	case OrderBySkill:
		q = q.OrderBy("skills ASC", "id ASC")
	default:
		q = q.OrderBy("id ASC")
	}
	return q
}

// SkillPattern returns the LIKE pattern matching one JSON array element.
func SkillPattern(skill string) string {
	encoded, _ := json.Marshal(skill) // marshalling a string cannot fail
	return "%" + escapeLike(string(encoded)) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// EncodeSkills serialises skills for the text column. nil becomes "[]".
func EncodeSkills(skills []string) string {
	if len(skills) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(skills)
	return string(b)
}

// DecodeSkills is the inverse of EncodeSkills. Empty or malformed text decodes
// to an empty list.
func DecodeSkills(raw string) []string {
	skills := []string{}
	if raw == "" {
		return skills
	}
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		return []string{}
	}
	return skills
}
