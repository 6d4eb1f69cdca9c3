package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			sizeErr   *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", pkgerrors.ErrValidation)
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: malformed JSON", pkgerrors.ErrValidation)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: %s must be a %s", pkgerrors.ErrValidation, typeErr.Field, typeErr.Type)
		case errors.As(err, &sizeErr):
			return fmt.Errorf("%w: request body too large", pkgerrors.ErrValidation)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("%w: property %s should not exist", pkgerrors.ErrValidation, strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return fmt.Errorf("%w: %v", pkgerrors.ErrValidation, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", pkgerrors.ErrValidation)
	}
	return nil
}

func requiredString(name string, v *string) (string, error) {
	if v == nil || *v == "" {
		return "", fmt.Errorf("%w: %s should not be empty", pkgerrors.ErrValidation, name)
	}
	return *v, nil
}

func optionalQuery(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}

func positiveQueryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be an integer not less than 1", pkgerrors.ErrInvalidInput, key)
	}
	return n, nil
}

// parseUserFilter reads the list query string. Empty values are ignored and
// every rejection wraps ErrInvalidInput.
func parseUserFilter(q url.Values) (models.UserFilter, error) {
	var f models.UserFilter
	nonEmpty := func(key string) *string {
		if v := optionalQuery(q, key); v != nil && *v != "" {
			return v
		}
		return nil
	}
	f.Username = nonEmpty("username")
	f.Name = nonEmpty("name")
	f.Address = nonEmpty("address")
	f.Comment = nonEmpty("comment")

	if v := nonEmpty("userType"); v != nil {
		role := models.Role(*v)
		if !role.Valid() {
			return f, fmt.Errorf("%w: userType must be one of USER, ADMIN", pkgerrors.ErrInvalidInput)
		}
		f.UserType = &role
	}
	if v := nonEmpty("sortBy"); v != nil {
		if !models.IsUserSortField(*v) {
			return f, fmt.Errorf("%w: sortBy must be one of %s", pkgerrors.ErrInvalidInput, strings.Join(models.UserSortFields, ", "))
		}
		f.SortBy = *v
	}
	if v := nonEmpty("sortDir"); v != nil {
		dir := models.SortDirection(*v)
		if dir != models.SortAsc && dir != models.SortDesc {
			return f, fmt.Errorf("%w: sortDir must be asc or desc", pkgerrors.ErrInvalidInput)
		}
		f.SortDir = dir
	}

	var err error
	if f.Page, err = positiveQueryInt(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = positiveQueryInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Limit > models.MaxListLimit {
		return f, fmt.Errorf("%w: limit must not be greater than %d", pkgerrors.ErrInvalidInput, models.MaxListLimit)
	}
	if _, _, ok := f.Window(); !ok {
		return f, fmt.Errorf("%w: page is out of range", pkgerrors.ErrInvalidInput)
	}
	return f, nil
}
