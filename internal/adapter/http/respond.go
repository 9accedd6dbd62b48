package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/celulas/locator/internal/adapter/viacep"
	"github.com/celulas/locator/internal/admin"
	"github.com/celulas/locator/internal/auth"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/store"
	"github.com/celulas/locator/internal/suggest"
	"github.com/celulas/locator/internal/view"
)

const maxBodyBytes = 1 << 20

var (
	// errBadRequest marks malformed parameters and bodies.
	errBadRequest = errors.New("bad request")
	errEmptyBody  = fmt.Errorf("%w: empty body", errBadRequest)
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps a service error to a status. Unknown errors are logged and
// reported as 500 without detail.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, viacep.ErrNotFound):
		return http.StatusNotFound, "postal code not found"
	case errors.Is(err, admin.ErrLookupFailed):
		return http.StatusBadGateway, admin.ErrLookupFailed.Error()
	case errors.Is(err, admin.ErrAddressNotFound):
		return http.StatusNotFound, "address not found"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, view.ErrSessionNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrReferenced):
		return http.StatusConflict, store.ErrReferenced.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidReference),
		errors.Is(err, admin.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidPostalCode),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, view.ErrUnknownCategory),
		errors.Is(err, view.ErrInvalidTheme),
		errors.Is(err, suggest.ErrNoSuggestion):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}

// queryPosition reads optional lat/lon query parameters. Both or neither must
// be present.
func queryPosition(r *http.Request) (*domain.Position, error) {
	q := r.URL.Query()
	latRaw, lonRaw := q.Get("lat"), q.Get("lon")
	if latRaw == "" && lonRaw == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lat %q", errBadRequest, latRaw)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid lon %q", errBadRequest, lonRaw)
	}
	pos := domain.Position{Lat: lat, Lon: lon}
	if err := pos.Check(); err != nil {
		return nil, err
	}
	return &pos, nil
}
