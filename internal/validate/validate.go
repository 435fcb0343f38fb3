// Package validate checks user input before it is sent to the API. It uses
// the validate tags declared on the api request types plus a few custom
// rules, and reports failures as *api.ValidationError so callers handle
// local and server field errors the same way.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"agendaaberta/internal/api"
	"agendaaberta/internal/model"
)

// InstitutionalDomains are the accepted e-mail suffixes for registration.
var InstitutionalDomains = []string{"@ufersa.edu.br", "@alunos.ufersa.edu.br"}

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.RegisterTagNameFunc(jsonName)

		mustRegister("nospace", noSpace)
		mustRegister("notblank", notBlank)
		mustRegister("institutional", institutional)
		v.RegisterStructValidation(ruleInputLevel, api.RuleInput{})
	})
	return v
}

func mustRegister(tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %s: %v", tag, err))
	}
}

// Registration validates a sign-up form.
func Registration(reg api.Registration) error {
	return check(reg)
}

// Rule validates a rule before create, or the merged result of an edit.
func Rule(in api.RuleInput) error {
	return check(in)
}

func check(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = message(fe)
	}
	return &api.ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "nospace":
		return "must not contain spaces"
	case "email":
		return "enter a valid e-mail address"
	case "institutional":
		return "use an institutional address (" + strings.Join(InstitutionalDomains, " or ") + ")"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "select a value"
	case "weekday":
		return "invalid day of week"
	case "timeofday":
		return "invalid time"
	case "after_start":
		return "end time must be after start time"
	default:
		return "invalid value"
	}
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func noSpace(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func institutional(fl validator.FieldLevel) bool {
	email := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	for _, domain := range InstitutionalDomains {
		if strings.HasSuffix(email, domain) && len(email) > len(domain) {
			return true
		}
	}
	return false
}

func ruleInputLevel(sl validator.StructLevel) {
	in := sl.Current().Interface().(api.RuleInput)

	if !in.DayOfWeek.Valid() {
		sl.ReportError(in.DayOfWeek, "dia_semana", "DayOfWeek", "weekday", "")
	}
	startOK := in.Start.Valid()
	endOK := in.End.Valid()
	if !startOK {
		sl.ReportError(in.Start, "hora_inicio", "Start", "timeofday", "")
	}
	if !endOK {
		sl.ReportError(in.End, "hora_fim", "End", "timeofday", "")
	}
	if startOK && endOK && !in.Start.Before(in.End) {
		sl.ReportError(in.End, "hora_fim", "End", "after_start", "")
	}
}

// ApplyPatch merges p into the fields of an existing rule so the result
// can be validated as a whole before the PATCH is sent.
func ApplyPatch(cur model.RecurrenceRule, p api.RulePatch) api.RuleInput {
	in := api.RuleInput{
		DisciplineID: cur.DisciplineID,
		DayOfWeek:    cur.DayOfWeek,
		Start:        cur.Start,
		End:          cur.End,
		Location:     cur.Location,
	}
	if p.DisciplineID != nil {
		in.DisciplineID = *p.DisciplineID
	}
	if p.DayOfWeek != nil {
		in.DayOfWeek = *p.DayOfWeek
	}
	if p.Start != nil {
		in.Start = *p.Start
	}
	if p.End != nil {
		in.End = *p.End
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	return in
}
