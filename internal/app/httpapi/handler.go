// Package httpapi exposes the scoring API over HTTP: a single POST /method
// endpoint dispatching online_score and clients_interests calls, plus
// health and metrics endpoints.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fennr/scoring-api/internal/app/metrics"
	scoringsvc "github.com/fennr/scoring-api/internal/app/services/scoring"
	"github.com/fennr/scoring-api/internal/logging"
)

// maxBodyBytes caps request bodies to prevent memory exhaustion.
const maxBodyBytes = 1 << 20

// envelope is the wire response shape: code mirrors the HTTP status,
// response carries the payload on success, error the reason otherwise.
type envelope struct {
	Code     int    `json:"code"`
	Response any    `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Options tunes optional handler behavior.
type Options struct {
	// AuditFile, when set, appends every dispatched call as JSONL.
	AuditFile string
	// AuditLimit bounds the in-memory audit ring. Zero means the default.
	AuditLimit int
}

type handler struct {
	dispatcher *Dispatcher
	log        *logging.Logger
	audit      *auditLog
}

// NewHandler builds the HTTP handler over the scoring service.
func NewHandler(scores *scoringsvc.Service, log *logging.Logger, opts Options) (http.Handler, error) {
	if log == nil {
		log = logging.New("httpapi", "info", "text")
	}

	fileSink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, err
	}
	var sink auditSink
	if fileSink != nil {
		sink = fileSink
	}

	h := &handler{
		dispatcher: NewDispatcher(scores, log),
		log:        log,
		audit:      newAuditLog(opts.AuditLimit, sink),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/method", h.method)
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/audit", h.recentAudit)
	mux.Handle("/metrics", metrics.Handler())
	return metrics.InstrumentHandler(mux), nil
}

func (h *handler) method(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = logging.NewRequestID()
	}
	ctx := logging.WithRequestID(r.Context(), requestID)
	log := h.log.WithContext(ctx)

	body, err := decodeBody(r.Body)
	if err != nil {
		log.WithError(err).Warn("malformed request body")
		metrics.RecordMethodCall("", http.StatusBadRequest)
		writeEnvelope(w, http.StatusBadRequest, nil, "bad request")
		return
	}

	audit := &AuditContext{RequestID: requestID}
	result, status := h.dispatcher.Dispatch(ctx, body, audit)

	login, _ := body["login"].(string)
	h.audit.add(auditEntry{
		Time:      time.Now().UTC(),
		RequestID: requestID,
		Login:     login,
		Method:    audit.Method,
		Status:    status,
		Has:       audit.Has,
		NClients:  audit.NClients,
	})
	metrics.RecordMethodCall(audit.Method, status)

	if status == http.StatusOK {
		log.WithFields(map[string]interface{}{
			"method":   audit.Method,
			"has":      audit.Has,
			"nclients": audit.NClients,
		}).Info("method call served")
		writeEnvelope(w, status, result, "")
		return
	}

	reason := "error"
	if m, ok := result.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok {
			reason = msg
		}
	}
	log.WithFields(map[string]interface{}{
		"method": audit.Method,
		"status": status,
	}).Warnf("method call rejected: %s", reason)
	writeEnvelope(w, status, nil, reason)
}

// recentAudit returns the most recent dispatched calls, oldest first. An
// optional limit query parameter caps the number of entries returned.
func (h *handler) recentAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entries := h.audit.list()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if len(entries) > n {
			entries = entries[len(entries)-n:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(body io.ReadCloser) (map[string]any, error) {
	defer body.Close()
	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeEnvelope(w http.ResponseWriter, status int, response any, errMsg string) {
	writeJSON(w, status, envelope{Code: status, Response: response, Error: errMsg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
