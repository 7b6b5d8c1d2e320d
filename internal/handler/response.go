package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

const (
	defaultLimit = 20
	maxLimit     = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so details keys match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return enum.OrderStatus(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
		return enum.PaymentStatus(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return enum.IsValidUserRole(fl.Field().String())
	})
	return v
}

// --- Envelopes ---

type dataResponse struct {
	Data any       `json:"data"`
	Meta *listMeta `json:"meta,omitempty"`
}

type listMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataResponse{Data: v})
}

func writeList(w http.ResponseWriter, v any, meta listMeta) {
	writeJSON(w, http.StatusOK, dataResponse{Data: v, Meta: &meta})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeInternalError logs err and answers with a generic 500 body.
func writeInternalError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON decodes the request body into dst and runs struct validation.
// It writes the 400 response itself and reports false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "validation failed",
				Details: formatValidationErrors(verrs),
			})
			return false
		}
		writeInternalError(w, err, "validate request")
		return false
	}
	return true
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
		switch fe.Tag() {
		case "required":
			details[field] = "is required"
		case "email":
			details[field] = "must be a valid email"
		case "uuid", "uuid4":
			details[field] = "must be a valid UUID"
		case "min":
			details[field] = "must be at least " + fe.Param()
		case "max":
			details[field] = "must be at most " + fe.Param()
		case "gt":
			details[field] = "must be greater than " + fe.Param()
		case "gte":
			details[field] = "must be greater than or equal to " + fe.Param()
		case "numeric":
			details[field] = "must be a number"
		case "datetime":
			details[field] = "must be a date (YYYY-MM-DD)"
		case "order_status", "payment_status", "user_role", "oneof":
			details[field] = "has an unsupported value"
		default:
			details[field] = "is invalid"
		}
	}
	return details
}

// --- Request parsing ---

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (pgtype.Date, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return pgtype.Date{}, errors.Wrapf(err, "invalid %s", key)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(r *http.Request, key string) (pgtype.UUID, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return pgtype.UUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, errors.Wrapf(err, "invalid %s", key)
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

func queryText(r *http.Request, key string) pgtype.Text {
	return optionalText(strings.TrimSpace(r.URL.Query().Get(key)))
}

// --- Scoping ---

// distributorScope returns the caller's own ID when the caller is a
// distributor, so list queries only see that distributor's stores.
func distributorScope(r *http.Request) pgtype.UUID {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != enum.UserRoleDistributor {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: claims.UserID, Valid: true}
}

// canSeeStore reports whether the caller may read data of a store assigned
// to distributorID.
func canSeeStore(r *http.Request, distributorID pgtype.UUID) bool {
	scope := distributorScope(r)
	if !scope.Valid {
		return true
	}
	return distributorID.Valid && distributorID.Bytes == scope.Bytes
}

// --- Conversions ---

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func optionalUUID(s string) pgtype.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
