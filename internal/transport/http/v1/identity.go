package v1

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Identity headers set by the claims provider in front of the API.
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderUserProjects = "X-User-Projects"
)

// userFrom reads the pre-validated identity from the request headers.
func userFrom(c echo.Context) (domain.User, error) {
	hdr := c.Request().Header
	id := strings.TrimSpace(hdr.Get(HeaderUserID))
	if id == "" {
		return domain.User{}, domain.NewError(domain.KindInvalidRequest, errors.New("missing user id"))
	}
	role, err := domain.ParseRole(strings.TrimSpace(hdr.Get(HeaderUserRole)))
	if err != nil {
		return domain.User{}, domain.NewError(domain.KindInvalidRequest, err)
	}
	return domain.User{ID: id, Role: role, AssignedProjects: splitProjects(hdr.Get(HeaderUserProjects))}, nil
}

func splitProjects(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
