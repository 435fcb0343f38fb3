package model

import "time"

// RecurrenceRule is one registered weekly commitment ("horário"): a
// discipline taught at a location on a fixed weekday and time range.
type RecurrenceRule struct {
	ID           int64 // server-assigned
	DisciplineID int64

	// Label is the display name, normally the discipline name.
	Label     string
	DayOfWeek Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Location  string
}

// WellFormed reports whether the rule can be placed on a calendar: a valid
// weekday, valid times and End strictly after Start.
func (r RecurrenceRule) WellFormed() bool {
	return r.DayOfWeek.Valid() && r.Start.Valid() && r.End.Valid() && r.Start.Before(r.End)
}

// CalendarOccurrence is a single concrete instance of a RecurrenceRule on a
// calendar date. Occurrences are derived and never persisted.
type CalendarOccurrence struct {
	// RuleID refers back to the originating rule (lookup only).
	RuleID int64 `json:"rule_id"`

	// InstanceKey uniquely identifies this occurrence across rules.
	InstanceKey string `json:"instance_key"`

	Title    string `json:"title"`
	Location string `json:"location"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Discipline is a subject ("disciplina") that rules are attached to.
type Discipline struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
	Code string `json:"codigo,omitempty"`
}

// UserKind is the account type chosen at registration.
type UserKind string

const (
	KindStudent   UserKind = "aluno"
	KindProfessor UserKind = "professor"
	KindMonitor   UserKind = "monitor"
)

// CanManageRules reports whether the kind owns office-hour rules.
func (k UserKind) CanManageRules() bool {
	return k == KindProfessor || k == KindMonitor
}

// User is the authenticated profile returned by /users/me/.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Kind      UserKind `json:"tipo,omitempty"`
}

// DisplayName returns "First Last" when known, else the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// Tokens is the access/refresh pair issued by /login/.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether no access token is held.
func (t Tokens) Empty() bool {
	return t.Access == ""
}

// PublicSlot is one row of the public office-hours search.
type PublicSlot struct {
	ID             int64  `json:"id"`
	ProfessorName  string `json:"professor_nome"`
	DayOfWeek      string `json:"dia_semana"`
	Start          string `json:"hora_inicio"`
	End            string `json:"hora_fim"`
	DisciplineName string `json:"disciplina_nome"`
	Location       string `json:"local"`
}
