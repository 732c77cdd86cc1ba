package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// StorePage is one page of the store directory.
type StorePage struct {
	Data       []domain.Store `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 first/prev/next/last links. The directory
// filters in the request (category, q, active) are carried into every link
// so paging never drops them.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	filters := url.Values{}
	for _, key := range []string{"category", "q", "active"} {
		if v := c.Query(key); v != "" {
			filters.Set(key, v)
		}
	}
	link := func(offset int, rel string) string {
		q := url.Values{}
		for k, v := range filters {
			q[k] = v
		}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(p.Limit))
		return fmt.Sprintf(`<%s?%s>; rel="%s"`, c.Path(), q.Encode(), rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	links = append(links, link(max(p.Total-p.Limit, 0), "last"))

	c.Set("Link", strings.Join(links, ", "))
}
