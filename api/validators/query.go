package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
)

// IntRange bounds a numeric query parameter. Default applies when the
// parameter is absent or blank.
type IntRange struct {
	Default int
	Min     int
	Max     int
}

// HistoryLimit is the page size accepted by audit listings.
var HistoryLimit = IntRange{Default: 50, Min: 1, Max: 200}

func ParseQueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < bounds.Min || value > bounds.Max {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be an integer between %d and %d", key, bounds.Min, bounds.Max).
			WithDetails(map[string]any{key: raw})
	}
	return value, nil
}

// ParseUUIDParam reads a chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a UUID", key).
			WithDetails(map[string]any{key: truncateRunes(raw, 64)})
	}
	return id, nil
}
