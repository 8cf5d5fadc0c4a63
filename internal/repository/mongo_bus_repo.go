package repository

import (
	"context"
	"errors"
	"fmt"

	"bus_ticket/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type routeDocument struct {
	ID        string  `bson:"id"`
	RouteName string  `bson:"routeName"`
	Price     float64 `bson:"price"`
}

type busDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	BusName       string             `bson:"busName"`
	TotalSeats    int                `bson:"totalSeats"`
	StartTime     string             `bson:"startTime"`
	EstimatedTime string             `bson:"estimatedTime"`
	Routes        []routeDocument    `bson:"routes"`
	Version       int64              `bson:"version"`
}

func toRouteDocuments(routes []model.Route) []routeDocument {
	docs := make([]routeDocument, 0, len(routes))
	for _, rt := range routes {
		docs = append(docs, routeDocument{ID: rt.ID, RouteName: rt.RouteName, Price: rt.Price})
	}
	return docs
}

func (d busDocument) toModel() *model.Bus {
	routes := make([]model.Route, 0, len(d.Routes))
	for _, rt := range d.Routes {
		routes = append(routes, model.Route{ID: rt.ID, RouteName: rt.RouteName, Price: rt.Price})
	}
	return &model.Bus{
		ID:            d.ID.Hex(),
		BusName:       d.BusName,
		TotalSeats:    d.TotalSeats,
		StartTime:     d.StartTime,
		EstimatedTime: d.EstimatedTime,
		Routes:        routes,
		Version:       d.Version,
	}
}

// routeEditFilter matches the bus only when routes.<index> exists, carries
// expectRouteID (if given) and differs from the new values, so that
// ModifiedCount reports a real change.
func routeEditFilter(busID primitive.ObjectID, index int, routeName string, price float64, expectRouteID string) bson.M {
	prefix := fmt.Sprintf("routes.%d", index)
	filter := bson.M{
		"_id":  busID,
		prefix: bson.M{"$exists": true},
		"$or": bson.A{
			bson.M{prefix + ".routeName": bson.M{"$ne": routeName}},
			bson.M{prefix + ".price": bson.M{"$ne": price}},
		},
	}
	if expectRouteID != "" {
		filter[prefix+".id"] = expectRouteID
	}
	return filter
}

func routeEditUpdate(index int, routeName string, price float64) bson.M {
	prefix := fmt.Sprintf("routes.%d", index)
	return bson.M{
		"$set": bson.M{prefix + ".routeName": routeName, prefix + ".price": price},
		"$inc": bson.M{"version": 1},
	}
}

// versionFilter matches busID at expectedVersion. Documents written before the
// version field existed decode as version 0 and are matched by its absence.
func versionFilter(busID primitive.ObjectID, expectedVersion int64) bson.M {
	if expectedVersion == 0 {
		return bson.M{"_id": busID, "$or": bson.A{
			bson.M{"version": int64(0)},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": busID, "version": expectedVersion}
}

type mongoBusRepository struct {
	coll *mongo.Collection
}

// NewMongoBusRepository creates a BusRepository over the buses collection of db
func NewMongoBusRepository(db *mongo.Database) BusRepository {
	return &mongoBusRepository{coll: db.Collection("buses")}
}

func (r *mongoBusRepository) Create(ctx context.Context, bus *model.Bus) error {
	doc := busDocument{
		ID:            primitive.NewObjectID(),
		BusName:       bus.BusName,
		TotalSeats:    bus.TotalSeats,
		StartTime:     bus.StartTime,
		EstimatedTime: bus.EstimatedTime,
		Routes:        toRouteDocuments(bus.Routes),
		Version:       bus.Version,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create bus: %w", err)
	}
	bus.ID = doc.ID.Hex()
	return nil
}

func (r *mongoBusRepository) FindByID(ctx context.Context, id string) (*model.Bus, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc busDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find bus by ID: %w", err)
	}
	return doc.toModel(), nil
}

func (r *mongoBusRepository) FindAll(ctx context.Context) ([]model.Bus, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "busName", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query buses: %w", err)
	}
	var docs []busDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode buses: %w", err)
	}
	buses := make([]model.Bus, 0, len(docs))
	for _, d := range docs {
		buses = append(buses, *d.toModel())
	}
	return buses, nil
}

func (r *mongoBusRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bus: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *mongoBusRepository) AppendRoute(ctx context.Context, busID string, route model.Route) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(busID)
	if err != nil {
		return false, nil
	}
	update := bson.M{
		"$push": bson.M{"routes": routeDocument{ID: route.ID, RouteName: route.RouteName, Price: route.Price}},
		"$inc":  bson.M{"version": 1},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return false, fmt.Errorf("failed to append route: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoBusRepository) UpdateRouteAt(ctx context.Context, busID string, index int, routeName string, price float64, expectRouteID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(busID)
	if err != nil || index < 0 {
		return false, nil
	}
	res, err := r.coll.UpdateOne(ctx, routeEditFilter(oid, index, routeName, price, expectRouteID), routeEditUpdate(index, routeName, price))
	if err != nil {
		return false, fmt.Errorf("failed to update route %d of bus %s: %w", index, busID, err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoBusRepository) ReplaceRoutes(ctx context.Context, busID string, routes []model.Route, expectedVersion int64) error {
	oid, err := primitive.ObjectIDFromHex(busID)
	if err != nil {
		return ErrVersionConflict
	}
	filter := versionFilter(oid, expectedVersion)
	update := bson.M{
		"$set": bson.M{"routes": toRouteDocuments(routes)},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to replace routes of bus %s: %w", busID, err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}
