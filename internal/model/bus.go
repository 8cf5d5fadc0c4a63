package model

// Route is one priced stop of a bus. Clients address it by its position in
// Bus.Routes; ID is assigned on insert and never changes.
type Route struct {
	ID        string  `json:"id"`
	RouteName string  `json:"routeName"`
	Price     float64 `json:"price"`
}

// Bus is the parent document holding the ordered route list
type Bus struct {
	ID            string  `json:"_id"`
	BusName       string  `json:"busName"`
	TotalSeats    int     `json:"totalSeats"`
	StartTime     string  `json:"startTime"`
	EstimatedTime string  `json:"estimatedTime"`
	Routes        []Route `json:"routes"`
	Version       int64   `json:"version"`
}

type CreateBusRequest struct {
	BusName       string         `json:"busName" binding:"required"`
	TotalSeats    int            `json:"totalSeats" binding:"gte=0"`
	StartTime     string         `json:"startTime"`
	EstimatedTime string         `json:"estimatedTime"`
	Routes        []RouteRequest `json:"routes" binding:"dive"`
}

type RouteRequest struct {
	RouteName string  `json:"routeName" binding:"required"`
	Price     float64 `json:"price" binding:"gte=0"`
}

// EditRouteRequest is the body of PUT /routes/:busId/:routeIndex. RouteID, when
// set, must match the id of the route currently at that index.
type EditRouteRequest struct {
	RouteName string  `json:"routeName" binding:"required"`
	Price     float64 `json:"price" binding:"gte=0"`
	RouteID   string  `json:"routeId"`
}
