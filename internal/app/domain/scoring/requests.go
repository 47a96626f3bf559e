package scoring

import (
	"time"

	"github.com/fennr/scoring-api/internal/errors"
)

// Supported method names.
const (
	MethodOnlineScore      = "online_score"
	MethodClientsInterests = "clients_interests"
)

// FieldSpec declares one named argument: its presence and null rules plus
// the validator applied to non-null values.
type FieldSpec struct {
	Name      string
	Required  bool
	Nullable  bool
	Validator Validator
}

// validateField looks Name up in args, distinguishing an absent key from an
// explicit null, and returns the validated value or nil when the field is
// legitimately absent or null.
func validateField(args map[string]any, spec FieldSpec) (any, error) {
	raw, present := args[spec.Name]
	if !present {
		if spec.Required {
			return nil, errors.InvalidRequest("%s is required", spec.Name)
		}
		return nil, nil
	}
	if raw == nil {
		if !spec.Nullable {
			return nil, errors.InvalidRequest("%s must not be null", spec.Name)
		}
		return nil, nil
	}
	value, err := spec.Validator.Validate(raw)
	if err != nil {
		return nil, errors.InvalidRequest("%s %v", spec.Name, err)
	}
	return value, nil
}

// OnlineScoreRequest is the validated shape of online_score arguments.
// Empty strings and nil pointers mean the field was absent or null.
type OnlineScoreRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  *time.Time
	Gender    *int
}

var onlineScoreFields = []FieldSpec{
	{Name: "first_name", Nullable: true, Validator: CharField{}},
	{Name: "last_name", Nullable: true, Validator: CharField{}},
	{Name: "email", Nullable: true, Validator: EmailField{}},
	{Name: "phone", Nullable: true, Validator: PhoneField{}},
	{Name: "birthday", Nullable: true, Validator: BirthDayField()},
	{Name: "gender", Nullable: true, Validator: GenderField{}},
}

// ParseOnlineScore validates the online_score arguments field by field.
// The cross-field pair invariant is checked separately via PairError, since
// admin callers are exempt from it.
func ParseOnlineScore(args map[string]any) (OnlineScoreRequest, error) {
	var req OnlineScoreRequest
	for _, spec := range onlineScoreFields {
		value, err := validateField(args, spec)
		if err != nil {
			return OnlineScoreRequest{}, err
		}
		if value == nil {
			continue
		}
		switch spec.Name {
		case "first_name":
			req.FirstName = value.(string)
		case "last_name":
			req.LastName = value.(string)
		case "email":
			req.Email = value.(string)
		case "phone":
			req.Phone = value.(string)
		case "birthday":
			day := value.(time.Time)
			req.Birthday = &day
		case "gender":
			gender := value.(int)
			req.Gender = &gender
		}
	}

	return req, nil
}

// PairError enforces the cross-field invariant: at least one of
// (phone, email), (first_name, last_name), (gender, birthday) must be
// fully present. Returns nil when satisfied.
func (r OnlineScoreRequest) PairError() error {
	hasPair := (r.Phone != "" && r.Email != "") ||
		(r.FirstName != "" && r.LastName != "") ||
		(r.Gender != nil && r.Birthday != nil)
	if !hasPair {
		return errors.InvalidRequest(
			"requires at least one pair: phone-email, first_name-last_name, or gender-birthday")
	}
	return nil
}

// ClientsInterestsRequest is the validated shape of clients_interests
// arguments.
type ClientsInterestsRequest struct {
	ClientIDs []int
	Date      *time.Time
}

var clientsInterestsFields = []FieldSpec{
	{Name: "client_ids", Required: true, Validator: ClientIDsField{}},
	// Format-checked only; historical dates are fine here.
	{Name: "date", Nullable: true, Validator: DateField{}},
}

// ParseClientsInterests validates the clients_interests arguments.
func ParseClientsInterests(args map[string]any) (ClientsInterestsRequest, error) {
	var req ClientsInterestsRequest
	for _, spec := range clientsInterestsFields {
		value, err := validateField(args, spec)
		if err != nil {
			return ClientsInterestsRequest{}, err
		}
		if value == nil {
			continue
		}
		switch spec.Name {
		case "client_ids":
			req.ClientIDs = value.([]int)
		case "date":
			day := value.(time.Time)
			req.Date = &day
		}
	}
	return req, nil
}
