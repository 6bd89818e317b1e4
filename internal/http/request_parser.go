// Package http exposes the cash-flow core as a JSON REST API.
//
// This file implements the request side: query parameter parsing with
// current-month defaults, bounded JSON body decoding and struct validation.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/services"
	"cashflow/internal/store"
)

const maxBodyBytes = 1 << 20

// ErrBadRequest marks malformed input that never reached the domain layer.
var ErrBadRequest = errors.New("bad request")

// requestError carries a client-facing message and optional field details.
type requestError struct {
	msg     string
	details []string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return ErrBadRequest }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// newValidator returns a validator that reports JSON field names and
// validates decimal amounts as numbers.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ParsePeriod reads start_date/end_date (YYYY-MM-DD). A missing bound falls
// back to the calendar month of now.
func ParsePeriod(query url.Values, now time.Time) (services.Period, error) {
	p := services.MonthOf(now)
	if v := strings.TrimSpace(query.Get("start_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return services.Period{}, badRequest("invalid start_date %q: expected YYYY-MM-DD", v)
		}
		p.Start = d
	}
	if v := strings.TrimSpace(query.Get("end_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return services.Period{}, badRequest("invalid end_date %q: expected YYYY-MM-DD", v)
		}
		p.End = d
	}
	if err := p.Validate(); err != nil {
		return services.Period{}, err
	}
	return p, nil
}

// ParseFilter builds a store filter from start_date, end_date and type.
// With defaultMonth the range falls back to the current month; otherwise a
// missing bound stays open.
func ParseFilter(query url.Values, now time.Time, defaultMonth bool) (store.Filter, error) {
	var f store.Filter
	if defaultMonth {
		p, err := ParsePeriod(query, now)
		if err != nil {
			return store.Filter{}, err
		}
		f.Start, f.End = p.Start, p.End
	} else {
		for key, dst := range map[string]*core.Date{"start_date": &f.Start, "end_date": &f.End} {
			if v := strings.TrimSpace(query.Get(key)); v != "" {
				d, err := core.ParseDate(v)
				if err != nil {
					return store.Filter{}, badRequest("invalid %s %q: expected YYYY-MM-DD", key, v)
				}
				*dst = d
			}
		}
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t, err := core.ParseType(v)
		if err != nil {
			return store.Filter{}, err
		}
		f.Type = t
	}
	if err := f.Validate(); err != nil {
		return store.Filter{}, err
	}
	return f, nil
}

// DecodeJSON reads a bounded JSON body into dst and validates it. An empty
// body decodes to the zero value.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("malformed JSON body: %v", err)
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationError(verrs)
		}
		return badRequest("invalid request: %v", err)
	}
	return nil
}

func validationError(verrs validator.ValidationErrors) error {
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace()
		if _, rest, ok := strings.Cut(msg, "."); ok {
			msg = rest
		}
		switch fe.Tag() {
		case "required":
			msg += " is required"
		case "gte":
			msg += " must be >= " + fe.Param()
		case "lte":
			msg += " must be <= " + fe.Param()
		case "max":
			msg += " must be at most " + fe.Param() + " characters"
		case "datetime":
			msg += " must match " + fe.Param()
		default:
			msg += " failed " + fe.Tag()
		}
		details = append(details, msg)
	}
	return &requestError{msg: "validation failed", details: details}
}

// sanitizeInput trims whitespace and drops control characters except tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
