package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/fennr/scoring-api/internal/app/domain/scoring"
	scoringsvc "github.com/fennr/scoring-api/internal/app/services/scoring"
	"github.com/fennr/scoring-api/internal/errors"
	"github.com/fennr/scoring-api/internal/logging"
)

// Dispatcher routes a parsed method-call payload through authentication,
// schema validation and the scoring service, producing a result value and
// a status code for the transport layer.
type Dispatcher struct {
	scores *scoringsvc.Service
	log    *logging.Logger
	now    func() time.Time
}

// NewDispatcher wires a dispatcher over the scoring service.
func NewDispatcher(scores *scoringsvc.Service, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.New("dispatcher", "info", "text")
	}
	return &Dispatcher{scores: scores, log: log, now: time.Now}
}

// SetClock overrides the dispatcher's clock used for token checks. Test hook.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch executes one method call. On non-200 the result is
// {"error": reason}; on 200 it is the method-specific payload. Panics and
// unclassified errors become a generic 500 with the cause logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, body map[string]any, audit *AuditContext) (result any, status int) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithContext(ctx).Errorf("dispatch panic: %v", r)
			result, status = errorResult("internal error"), http.StatusInternalServerError
		}
	}()

	login, err := stringField(body, "login")
	if err != nil {
		return d.failure(ctx, err)
	}
	token, err := stringField(body, "token")
	if err != nil {
		return d.failure(ctx, err)
	}
	method, err := stringField(body, "method")
	if err != nil {
		return d.failure(ctx, err)
	}
	account, err := stringField(body, "account")
	if err != nil {
		return d.failure(ctx, err)
	}

	if login == "" || token == "" || method == "" {
		return d.failure(ctx, errors.InvalidRequest("login, token and method are required"))
	}
	audit.Method = method

	if method != domain.MethodOnlineScore && method != domain.MethodClientsInterests {
		return d.failure(ctx, errors.NotFound(fmt.Sprintf("unknown method %q", method)))
	}

	auth := domain.NewAuthContext(login, account, token)
	if !domain.CheckAuth(auth, d.now()) {
		return d.failure(ctx, errors.Forbidden("authentication failed"))
	}

	args, err := argumentsField(body)
	if err != nil {
		return d.failure(ctx, err)
	}

	switch method {
	case domain.MethodOnlineScore:
		return d.onlineScore(ctx, auth, args, audit)
	default:
		return d.clientsInterests(ctx, args, audit)
	}
}

func (d *Dispatcher) onlineScore(ctx context.Context, auth domain.AuthContext, args map[string]any, audit *AuditContext) (any, int) {
	req, err := domain.ParseOnlineScore(args)
	if err != nil {
		return d.failure(ctx, err)
	}
	audit.Has = truthyArgNames(args)

	// Admin callers get the fixed score and are exempt from the pair
	// invariant; field validation above still applies.
	if auth.IsAdmin {
		return map[string]any{"score": scoringsvc.AdminScore}, http.StatusOK
	}
	if err := req.PairError(); err != nil {
		return d.failure(ctx, err)
	}
	return map[string]any{"score": d.scores.GetScore(ctx, req)}, http.StatusOK
}

func (d *Dispatcher) clientsInterests(ctx context.Context, args map[string]any, audit *AuditContext) (any, int) {
	req, err := domain.ParseClientsInterests(args)
	if err != nil {
		return d.failure(ctx, err)
	}

	interests := make(map[string][]string, len(req.ClientIDs))
	for _, clientID := range req.ClientIDs {
		tags, err := d.scores.GetInterests(ctx, clientID)
		if err != nil {
			return d.failure(ctx, err)
		}
		interests[fmt.Sprintf("%d", clientID)] = tags
	}
	audit.NClients = len(interests)
	return interests, http.StatusOK
}

// failure maps an error onto its result/status pair. Expected outcomes keep
// their reason text; everything else is logged and reported generically.
func (d *Dispatcher) failure(ctx context.Context, err error) (any, int) {
	if svcErr, ok := errors.GetServiceError(err); ok {
		switch svcErr.Code {
		case errors.ErrCodeInvalidRequest:
			return errorResult(svcErr.Message), http.StatusUnprocessableEntity
		case errors.ErrCodeForbidden:
			return errorResult(svcErr.Message), http.StatusForbidden
		case errors.ErrCodeNotFound:
			return errorResult(svcErr.Message), http.StatusNotFound
		}
	}
	d.log.WithContext(ctx).WithError(err).Error("dispatch failed")
	return errorResult("internal error"), http.StatusInternalServerError
}

func errorResult(reason string) map[string]any {
	return map[string]any{"error": reason}
}

// stringField extracts an optional top-level string; a present non-string
// value is a validation failure. Absent reads as "".
func stringField(body map[string]any, name string) (string, error) {
	raw, present := body[name]
	if !present || raw == nil {
		return "", nil
	}
	value, err := domain.CharField{}.Validate(raw)
	if err != nil {
		return "", errors.InvalidRequest("%s %v", name, err)
	}
	return value.(string), nil
}

// argumentsField extracts the arguments mapping, defaulting to empty.
func argumentsField(body map[string]any) (map[string]any, error) {
	raw, present := body["arguments"]
	if !present || raw == nil {
		return map[string]any{}, nil
	}
	value, err := domain.ArgumentsField{}.Validate(raw)
	if err != nil {
		return nil, errors.InvalidRequest("arguments %v", err)
	}
	return value.(map[string]any), nil
}

// truthyArgNames lists argument names whose value is non-empty in the JSON
// sense: null, "", 0, false, empty arrays and empty objects do not count.
// Sorted for deterministic audit output.
func truthyArgNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for name, value := range args {
		if jsonTruthy(value) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func jsonTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
