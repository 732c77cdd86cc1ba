package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// NearbyResponse is the body of a radius search.
type NearbyResponse struct {
	Center  domain.Coordinate    `json:"center"`
	Radius  float64              `json:"radius"`
	Unit    domain.Unit          `json:"unit"`
	Count   int                  `json:"count"`
	Results []domain.RankedStore `json:"results"`
}

// DistanceResponse is the body of a point-to-point distance lookup.
type DistanceResponse struct {
	From     domain.Coordinate `json:"from"`
	To       domain.Coordinate `json:"to"`
	Distance float64           `json:"distance"`
	Unit     domain.Unit       `json:"unit"`
}

// storeRequest is the writable part of a store.
type storeRequest struct {
	Slug       string             `json:"slug"`
	Name       string             `json:"name"`
	Address    string             `json:"address"`
	City       string             `json:"city"`
	Region     string             `json:"region"`
	Country    string             `json:"country"`
	Phone      string             `json:"phone"`
	Website    string             `json:"website"`
	Categories []string           `json:"categories"`
	Location   *domain.Coordinate `json:"location"`
	Active     *bool              `json:"active"`
}

func (r storeRequest) toStore() *domain.Store {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &domain.Store{
		Slug:       r.Slug,
		Name:       r.Name,
		Address:    r.Address,
		City:       r.City,
		Region:     r.Region,
		Country:    r.Country,
		Phone:      r.Phone,
		Website:    r.Website,
		Categories: r.Categories,
		Location:   r.Location,
		Active:     active,
	}
}

// queryCoordinate reads a lat/lon pair from the query string. It returns nil
// when both are absent and an error when only one is given or either is not
// a number.
func queryCoordinate(c *fiber.Ctx, latKey, lonKey string) (*domain.Coordinate, error) {
	latStr, lonStr := c.Query(latKey), c.Query(lonKey)
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fmt.Errorf("%s and %s must be given together", latKey, lonKey)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", latKey)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", lonKey)
	}
	return &domain.Coordinate{Lat: lat, Lon: lon}, nil
}

// queryFloat reads an optional float parameter, returning def when absent.
func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

// queryInt reads an optional integer parameter, returning def when absent.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// queryUnit parses the unit query parameter; empty means the service default.
func queryUnit(c *fiber.Ctx) (domain.Unit, error) {
	if c.Query("unit") == "" {
		return "", nil
	}
	return domain.ParseUnit(c.Query("unit"))
}

// ListStoresHandler returns a page of stores.
func ListStoresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit, err := queryInt(c, "limit", 100)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 100
		}

		stores, total, err := deps.Stores.List(c.UserContext(), domain.StoreFilter{
			Query:      c.Query("q"),
			Category:   c.Query("category"),
			ActiveOnly: c.QueryBool("active", false),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return errFromService(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(StorePage{Data: stores, Pagination: pg})
	}
}

// NearbyStoresHandler returns stores within a radius of a point, nearest first.
func NearbyStoresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, err := queryCoordinate(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if center == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		unit, err := queryUnit(c)
		if err != nil {
			return errFromService(c, err)
		}
		radius, err := queryFloat(c, "radius", 25)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit, err := queryInt(c, "limit", 0)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		results, err := deps.Stores.FindNearby(c.UserContext(), domain.NearbyQuery{
			Center:   *center,
			Radius:   radius,
			Unit:     unit,
			Category: c.Query("category"),
			Limit:    limit,
		})
		if err != nil {
			return errFromService(c, err)
		}

		if unit == "" {
			unit = deps.Stores.Limits().DefaultUnit
		}
		c.Locals(localResults, len(results))
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(NearbyResponse{
			Center:  *center,
			Radius:  radius,
			Unit:    unit,
			Count:   len(results),
			Results: results,
		})
	}
}

// SearchStoresHandler matches stores by name or city, optionally ranked by
// distance from lat/lon.
func SearchStoresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		near, err := queryCoordinate(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		unit, err := queryUnit(c)
		if err != nil {
			return errFromService(c, err)
		}
		limit, err := queryInt(c, "limit", 20)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		stores, err := deps.Stores.Search(c.UserContext(), query, near, unit, limit)
		if err != nil {
			return errFromService(c, err)
		}
		c.Locals(localResults, len(stores))
		return c.JSON(stores)
	}
}

// GetStoreHandler returns a single store by ID.
func GetStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "store id is required")
		}
		store, err := deps.Stores.GetByID(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(store)
	}
}

// CreateStoreHandler adds a store to the directory.
func CreateStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req storeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		store, err := deps.Stores.Create(c.UserContext(), req.toStore())
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/stores/" + store.ID)
		return c.Status(fiber.StatusCreated).JSON(store)
	}
}

// UpdateStoreHandler replaces an existing store.
func UpdateStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req storeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		store, err := deps.Stores.Update(c.UserContext(), c.Params("id"), req.toStore())
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(store)
	}
}

// DeleteStoreHandler removes a store.
func DeleteStoreHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Stores.Delete(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DistanceHandler returns the great-circle distance between two points.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := queryCoordinate(c, "from_lat", "from_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		to, err := queryCoordinate(c, "to_lat", "to_lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if from == nil || to == nil {
			return errBadRequest(c, "from_lat, from_lon, to_lat and to_lon are required")
		}
		unit, err := queryUnit(c)
		if err != nil {
			return errFromService(c, err)
		}
		if unit == "" {
			unit = deps.Stores.Limits().DefaultUnit
		}

		d, err := deps.Stores.Distance(*from, *to, unit)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(DistanceResponse{From: *from, To: *to, Distance: d, Unit: unit})
	}
}
