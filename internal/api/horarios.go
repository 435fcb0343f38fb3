package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// RuleInput creates a rule. The validate tags are enforced by package
// validate before submission; the server stays authoritative for overlap
// conflicts.
type RuleInput struct {
	DisciplineID int64           `json:"disciplina" validate:"required,gt=0"`
	DayOfWeek    model.Weekday   `json:"dia_semana"`
	Start        model.TimeOfDay `json:"hora_inicio"`
	End          model.TimeOfDay `json:"hora_fim"`
	Location     string          `json:"local" validate:"notblank"`
}

// RulePatch is a partial update; nil fields are not sent.
type RulePatch struct {
	DisciplineID *int64           `json:"disciplina,omitempty"`
	DayOfWeek    *model.Weekday   `json:"dia_semana,omitempty"`
	Start        *model.TimeOfDay `json:"hora_inicio,omitempty"`
	End          *model.TimeOfDay `json:"hora_fim,omitempty"`
	Location     *string          `json:"local,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p RulePatch) Empty() bool {
	return p.DisciplineID == nil && p.DayOfWeek == nil && p.Start == nil && p.End == nil && p.Location == nil
}

// ruleDTO is the wire shape of /horarios/ rows.
type ruleDTO struct {
	ID         int64           `json:"id"`
	Discipline json.RawMessage `json:"disciplina"`
	DayOfWeek  string          `json:"dia_semana"`
	Start      string          `json:"hora_inicio"`
	End        string          `json:"hora_fim"`
	Location   string          `json:"local"`
}

// toModel converts a wire row. Unparsable weekday/time values become
// invalid markers so the rule is kept but never materialized.
func (d ruleDTO) toModel() model.RecurrenceRule {
	r := model.RecurrenceRule{
		ID:       d.ID,
		Location: d.Location,
	}
	r.DisciplineID, r.Label = decodeDiscipline(d.Discipline)

	var err error
	if r.DayOfWeek, err = model.ParseWeekday(d.DayOfWeek); err != nil {
		appLog.Debug("api: rule has unknown weekday", "rule_id", d.ID, "dia_semana", d.DayOfWeek)
	}
	if r.Start, err = model.ParseTimeOfDay(d.Start); err != nil {
		appLog.Debug("api: rule has bad start time", "rule_id", d.ID, "hora_inicio", d.Start)
	}
	if r.End, err = model.ParseTimeOfDay(d.End); err != nil {
		appLog.Debug("api: rule has bad end time", "rule_id", d.ID, "hora_fim", d.End)
	}
	return r
}

// decodeDiscipline accepts both the nested {"id", "nome"} object and a bare
// primary key.
func decodeDiscipline(raw json.RawMessage) (int64, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, ""
	}
	if raw[0] == '{' {
		var d model.Discipline
		if err := json.Unmarshal(raw, &d); err == nil {
			return d.ID, d.Name
		}
		return 0, ""
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, ""
	}
	return 0, ""
}

// Disciplines lists all disciplines.
func (c *Client) Disciplines(ctx context.Context) ([]model.Discipline, error) {
	return getList[model.Discipline](ctx, c, "/disciplinas/", nil)
}

// Rules lists the caller's recurrence rules.
func (c *Client) Rules(ctx context.Context) ([]model.RecurrenceRule, error) {
	rows, err := getList[ruleDTO](ctx, c, "/horarios/", nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.RecurrenceRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// CreateRule registers a new rule and returns it as stored by the server.
func (c *Client) CreateRule(ctx context.Context, in RuleInput) (model.RecurrenceRule, error) {
	var row ruleDTO
	if err := c.do(ctx, http.MethodPost, "/horarios/", nil, in, &row); err != nil {
		return model.RecurrenceRule{}, err
	}
	return row.toModel(), nil
}

// UpdateRule applies a partial update to rule id.
func (c *Client) UpdateRule(ctx context.Context, id int64, patch RulePatch) (model.RecurrenceRule, error) {
	if patch.Empty() {
		return model.RecurrenceRule{}, fmt.Errorf("update rule %d: empty patch", id)
	}
	var row ruleDTO
	if err := c.do(ctx, http.MethodPatch, rulePath(id), nil, patch, &row); err != nil {
		return model.RecurrenceRule{}, err
	}
	return row.toModel(), nil
}

// DeleteRule removes rule id.
func (c *Client) DeleteRule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, rulePath(id), nil, nil, nil)
}

// SearchPublic runs the public text search across all rules.
func (c *Client) SearchPublic(ctx context.Context, query string) ([]model.PublicSlot, error) {
	q := url.Values{}
	q.Set("search", query)
	return getList[model.PublicSlot](ctx, c, "/horarios-publicos/", q)
}

func rulePath(id int64) string {
	return fmt.Sprintf("/horarios/%d/", id)
}
