package scoring

import (
	"fmt"
	"strings"
	"time"
)

// Gender values accepted by GenderField.
const (
	GenderUnknown = 0
	GenderMale    = 1
	GenderFemale  = 2
)

// DateLayout is the wire format for dates and birthdays.
const DateLayout = "02.01.2006"

// Validator checks a single non-null raw argument value and returns its
// validated, coerced form. Presence and null handling happen one level up,
// in the field spec walk (see requests.go).
type Validator interface {
	Validate(value any) (any, error)
}

// CharField accepts any string.
type CharField struct{}

func (CharField) Validate(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("must be a string, not %T", value)
	}
	return s, nil
}

// EmailField accepts strings containing '@'.
type EmailField struct{}

func (EmailField) Validate(value any) (any, error) {
	v, err := CharField{}.Validate(value)
	if err != nil {
		return nil, err
	}
	s := v.(string)
	if !strings.Contains(s, "@") {
		return nil, fmt.Errorf("must contain '@'")
	}
	return s, nil
}

// PhoneField accepts strings of exactly 11 characters starting with '7'.
type PhoneField struct{}

func (PhoneField) Validate(value any) (any, error) {
	v, err := CharField{}.Validate(value)
	if err != nil {
		return nil, err
	}
	s := v.(string)
	if len(s) != 11 || s[0] != '7' {
		return nil, fmt.Errorf("must be 11 digits and start with 7")
	}
	return s, nil
}

// DateField parses DD.MM.YYYY strings. When MaxAgeYears is positive, dates
// whose elapsed age exceeds it are rejected.
type DateField struct {
	MaxAgeYears int
}

// BirthDayField is a DateField capped at 70 years in the past.
func BirthDayField() DateField {
	return DateField{MaxAgeYears: 70}
}

func (f DateField) Validate(value any) (any, error) {
	v, err := CharField{}.Validate(value)
	if err != nil {
		return nil, err
	}
	parsed, err := time.Parse(DateLayout, v.(string))
	if err != nil {
		return nil, fmt.Errorf("must be in DD.MM.YYYY format")
	}
	if f.MaxAgeYears > 0 {
		if yearsSince(parsed, time.Now()) > f.MaxAgeYears {
			return nil, fmt.Errorf("must be less than %d years ago", f.MaxAgeYears)
		}
	}
	return parsed, nil
}

// yearsSince computes whole elapsed years between from and now, counting a
// year only once its month and day have passed.
func yearsSince(from, now time.Time) int {
	years := now.Year() - from.Year()
	if now.Month() < from.Month() || (now.Month() == from.Month() && now.Day() < from.Day()) {
		years--
	}
	return years
}

// GenderField accepts the integers 0, 1 and 2. JSON numbers arrive as
// float64 and are accepted when they carry an exact integer value.
type GenderField struct{}

func (GenderField) Validate(value any) (any, error) {
	n, ok := toInt(value)
	if !ok {
		return nil, fmt.Errorf("must be an integer, not %T", value)
	}
	if n != GenderUnknown && n != GenderMale && n != GenderFemale {
		return nil, fmt.Errorf("must be 0, 1 or 2")
	}
	return n, nil
}

// ClientIDsField accepts a non-empty list of integers.
type ClientIDsField struct{}

func (ClientIDsField) Validate(value any) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list, not %T", value)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("must be a non-empty list")
	}
	ids := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := toInt(item)
		if !ok {
			return nil, fmt.Errorf("must contain only integers")
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// ArgumentsField accepts a JSON object.
type ArgumentsField struct{}

func (ArgumentsField) Validate(value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be an object, not %T", value)
	}
	return m, nil
}

// toInt coerces JSON numbers to int, rejecting fractional values.
func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
