package echoapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/quickgrade/core"
)

var orderingParam = "ordering"

// Ordering binds `?ordering=field,-other` (a leading "-" means descending).
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses the ordering query param, rejecting fields that are not in allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if !contains(allowed, field) {
			return core.NewValidationError(nil, core.FieldError{Field: orderingParam, Error: "unknown field " + field})
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// pathParam returns the unescaped value of the path param `name`.
func pathParam(ctx echo.Context, name string) string {
	val := ctx.Param(name)
	if unescaped, err := url.PathUnescape(val); err == nil {
		return unescaped
	}
	return val
}

// intParam returns the integer path param `name`; a malformed value is reported as not found.
func intParam(ctx echo.Context, name string) (int, error) {
	val, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return val, nil
}
