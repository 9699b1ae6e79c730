package api

import (
	"context"
	"net/http"

	"noe/internal/domain/routes"
)

func (c *Client) ListRoutes(ctx context.Context, filter routes.SearchFilter) ([]routes.Route, error) {
	var out []routes.Route
	err := c.do(ctx, request{op: "list routes", method: http.MethodGet, path: "/routes", query: filter.Query(), want: http.StatusOK}, &out)
	return out, err
}

func (c *Client) GetRoute(ctx context.Context, id routes.ID) (routes.Route, error) {
	var out routes.Route
	err := c.do(ctx, request{op: "get route", method: http.MethodGet, path: "/routes/" + pathID(string(id)), want: http.StatusOK}, &out)
	return out, err
}

// MyRoutes lists the routes registered by the authenticated transporter.
func (c *Client) MyRoutes(ctx context.Context) ([]routes.Route, error) {
	var out []routes.Route
	err := c.do(ctx, request{op: "my routes", method: http.MethodGet, path: "/routes/mine", want: http.StatusOK}, &out)
	return out, err
}

func (c *Client) CreateRoute(ctx context.Context, params routes.RouteParams) (routes.Route, error) {
	if err := params.Validate(); err != nil {
		return routes.Route{}, err
	}
	var out routes.Route
	err := c.do(ctx, request{op: "create route", method: http.MethodPost, path: "/routes", body: params, want: http.StatusCreated}, &out)
	return out, err
}

func (c *Client) UpdateRoute(ctx context.Context, id routes.ID, params routes.RouteParams) (routes.Route, error) {
	if err := params.Validate(); err != nil {
		return routes.Route{}, err
	}
	var out routes.Route
	err := c.do(ctx, request{op: "update route", method: http.MethodPut, path: "/routes/" + pathID(string(id)), body: params, want: http.StatusCreated}, &out)
	return out, err
}
