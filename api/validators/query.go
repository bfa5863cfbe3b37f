package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQuerySupermarket reads an optional chain filter. ok is false when the parameter is absent.
func ParseQuerySupermarket(r *http.Request, key string) (supermarket enums.Supermarket, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return "", false, nil
	}
	parsed := enums.ParseSupermarket(raw)
	if !parsed.IsValid() {
		return "", false, pkgerrors.New(pkgerrors.CodeValidation, "unknown supermarket").
			WithDetails(map[string]any{"field": key, "value": raw, "allowed": supermarketList()})
	}
	return parsed, true, nil
}
