package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	storeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Store",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"slug":       &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"address":    &graphql.Field{Type: graphql.String},
			"city":       &graphql.Field{Type: graphql.String},
			"region":     &graphql.Field{Type: graphql.String},
			"country":    &graphql.Field{Type: graphql.String},
			"phone":      &graphql.Field{Type: graphql.String},
			"website":    &graphql.Field{Type: graphql.String},
			"categories": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"location":   &graphql.Field{Type: geoPointType},
			"active":     &graphql.Field{Type: graphql.Boolean},
			"created_at": &graphql.Field{Type: graphql.DateTime},
			"updated_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	rankedStoreType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RankedStore",
		Fields: graphql.Fields{
			"store":    &graphql.Field{Type: storeType},
			"distance": &graphql.Field{Type: graphql.Float},
			"unit": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if rs, ok := p.Source.(domain.RankedStore); ok {
						return rs.Unit.String(), nil
					}
					return nil, nil
				},
			},
		},
	})

	// optionalUnit reads the "unit" argument, falling back to the service default.
	optionalUnit := func(p graphql.ResolveParams) (domain.Unit, error) {
		raw, _ := p.Args["unit"].(string)
		if raw == "" {
			return deps.Stores.Limits().DefaultUnit, nil
		}
		return domain.ParseUnit(raw)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"store": &graphql.Field{
				Type:        storeType,
				Description: "Get a store by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Stores.GetByID(p.Context, id)
				},
			},
			"stores": &graphql.Field{
				Type:        graphql.NewList(storeType),
				Description: "List stores, optionally filtered by category",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"offset":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					category, _ := p.Args["category"].(string)
					stores, _, err := deps.Stores.List(p.Context, domain.StoreFilter{
						Category: category,
						Limit:    p.Args["limit"].(int),
						Offset:   p.Args["offset"].(int),
					})
					return stores, err
				},
			},
			"storesNearby": &graphql.Field{
				Type:        graphql.NewList(rankedStoreType),
				Description: "Stores within a radius of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 25.0},
					"unit":     &graphql.ArgumentConfig{Type: graphql.String},
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					unit, err := optionalUnit(p)
					if err != nil {
						return nil, err
					}
					category, _ := p.Args["category"].(string)
					return deps.Stores.FindNearby(p.Context, domain.NearbyQuery{
						Center:   domain.Coordinate{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)},
						Radius:   p.Args["radius"].(float64),
						Unit:     unit,
						Category: category,
						Limit:    p.Args["limit"].(int),
					})
				},
			},
			"searchStores": &graphql.Field{
				Type:        graphql.NewList(storeType),
				Description: "Search stores by name or city",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":   &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					var near *domain.Coordinate
					lat, hasLat := p.Args["lat"].(float64)
					lon, hasLon := p.Args["lon"].(float64)
					if hasLat && hasLon {
						near = &domain.Coordinate{Lat: lat, Lon: lon}
					}
					return deps.Stores.Search(p.Context, q, near, "", limit)
				},
			},
			"distance": &graphql.Field{
				Type:        graphql.Float,
				Description: "Great-circle distance between two points",
				Args: graphql.FieldConfigArgument{
					"from_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"from_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"unit":     &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					unit, err := optionalUnit(p)
					if err != nil {
						return nil, err
					}
					from := domain.Coordinate{Lat: p.Args["from_lat"].(float64), Lon: p.Args["from_lon"].(float64)}
					to := domain.Coordinate{Lat: p.Args["to_lat"].(float64), Lon: p.Args["to_lon"].(float64)}
					return deps.Stores.Distance(from, to, unit)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
