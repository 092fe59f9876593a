package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/usecase"
)

// DefaultPhoneRegion is used to parse phone numbers written without a country code.
const DefaultPhoneRegion = "PE"

var (
	personNamePattern = regexp.MustCompile(`^[\p{L} ]+$`)
	phonePattern      = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	emailPattern      = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

	lowercasePattern = regexp.MustCompile(`[a-z]`)
	uppercasePattern = regexp.MustCompile(`[A-Z]`)
	digitPattern     = regexp.MustCompile(`\d`)
	symbolPattern    = regexp.MustCompile(`[@$!%*?&]`)
)

// is.Email resolves MX records; only the format is checked here.
var emailRule = validation.Match(emailPattern).Error("must be a valid email address")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (r *LoginRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(1, 255), emailRule),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(1, 128)),
	)
}

func (r *RegistrationRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
	r.FirstName = collapseSpaces(r.FirstName)
	r.LastName = collapseSpaces(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.DNI = strings.TrimSpace(r.DNI)
}

// validateWithRegion checks the payload; phone numbers are parsed against region.
func (r RegistrationRequest) validateWithRegion(region string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(1, 255), emailRule),
		validation.Field(&r.Password,
			validation.Required,
			validation.RuneLength(8, 128),
			validation.Match(lowercasePattern).Error("must contain a lowercase letter"),
			validation.Match(uppercasePattern).Error("must contain an uppercase letter"),
			validation.Match(digitPattern).Error("must contain a digit"),
			validation.Match(symbolPattern).Error("must contain one of @$!%*?&"),
		),
		validation.Field(&r.FirstName,
			validation.Required,
			validation.RuneLength(2, 100),
			validation.Match(personNamePattern).Error("may only contain letters and spaces"),
		),
		validation.Field(&r.LastName,
			validation.Required,
			validation.RuneLength(2, 100),
			validation.Match(personNamePattern).Error("may only contain letters and spaces"),
		),
		validation.Field(&r.Phone,
			validation.Length(0, 20),
			validation.Match(phonePattern).Error("must be a valid phone number"),
			validation.By(phoneNumberRule(region)),
		),
		validation.Field(&r.DNI,
			validation.Length(0, 20),
			is.Alphanumeric,
		),
	)
}

func phoneNumberRule(region string) validation.RuleFunc {
	return func(value interface{}) error {
		raw, _ := value.(string)
		if raw == "" {
			return nil
		}
		if _, err := formatPhone(raw, region); err != nil {
			return err
		}
		return nil
	}
}

// formatPhone parses a phone number and renders it in E.164.
func formatPhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", errors.New("must be a valid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// toInput converts a validated request into the registration input.
func (r RegistrationRequest) toInput(region string) (usecase.RegistrationInput, error) {
	in := usecase.RegistrationInput{
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
	if r.Phone != "" {
		phone, err := formatPhone(r.Phone, region)
		if err != nil {
			return usecase.RegistrationInput{}, err
		}
		in.Phone = &phone
	}
	if r.DNI != "" {
		dni := r.DNI
		in.NationalID = &dni
	}
	return in, nil
}

func (r *RoleCreateRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.State = strings.TrimSpace(r.State)
}

func (r RoleCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&r.State, validation.In(string(domain.RoleStateActive), string(domain.RoleStateInactive)).
			Error("must be active or inactive")),
	)
}

func (r *RoleUpdateRequest) normalize() {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}
}

func (r RoleUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.RuneLength(1, 50)),
		validation.Field(&r.State, validation.In(string(domain.RoleStateActive), string(domain.RoleStateInactive)).
			Error("must be active or inactive")),
	)
}

func (r RoleUpdateRequest) toPatch() domain.RoleUpdate {
	patch := domain.RoleUpdate{Name: r.Name, Description: r.Description}
	if r.State != nil {
		state := domain.RoleState(*r.State)
		patch.State = &state
	}
	return patch
}

func (r AssignRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.Digit),
		validation.Field(&r.Action, validation.Required,
			validation.In(string(domain.AssignmentActionAssign), string(domain.AssignmentActionRevoke)).
				Error("must be assign or revoke")),
	)
}

func (r SetActiveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Active, validation.NotNil),
	)
}

// validationMessages flattens ozzo errors into sorted "field: message" strings.
func validationMessages(err error) []string {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return []string{err.Error()}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, fields[k].Error()))
	}
	return out
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func parseRoleID(raw string) (int32, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid role id %q", raw)
	}
	return int32(id), nil
}
