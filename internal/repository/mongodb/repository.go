package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/repository"
)

const (
	zonesCollection           = "zones"
	observationsCollection    = "observations"
	recommendationsCollection = "recommendations"
	reportsCollection         = "daily_reports"
)

var _ repository.Store = (*MongoDBRepository)(nil)

type zoneDoc struct {
	ID         string     `bson:"_id"`
	FarmID     string     `bson:"farm_id"`
	NameKey    string     `bson:"name_key"`
	Name       string     `bson:"name"`
	CropType   string     `bson:"crop_type"`
	ArchivedAt *time.Time `bson:"archived_at"`
	CreatedAt  time.Time  `bson:"created_at"`
}

type observationDoc struct {
	ID         string    `bson:"_id"`
	ZoneID     string    `bson:"zone_id"`
	Type       string    `bson:"type"`
	ImageURL   *string   `bson:"image_url"`
	CapturedAt time.Time `bson:"captured_at"`
	UploadedAt time.Time `bson:"uploaded_at"`
}

type recommendationDoc struct {
	ID                 string     `bson:"_id"`
	ZoneID             string     `bson:"zone_id"`
	RecommendationType string     `bson:"recommendation_type"`
	DCIScore           int        `bson:"dci_score"`
	ExplanationSummary string     `bson:"explanation_summary"`
	DecisionStatus     string     `bson:"decision_status"`
	DecisionBy         *string    `bson:"decision_by"`
	DecisionNote       *string    `bson:"decision_note"`
	DecisionAt         *time.Time `bson:"decision_at"`
	ExecutedAt         *time.Time `bson:"executed_at"`
	CreatedAt          time.Time  `bson:"created_at"`
}

type dailyReportDoc struct {
	ID               string    `bson:"_id"`
	Date             time.Time `bson:"date"`
	ZoneCount        int       `bson:"zone_count"`
	OKZones          int       `bson:"ok_zones"`
	StressedZones    int       `bson:"stressed_zones"`
	UnknownZones     int       `bson:"unknown_zones"`
	AwaitingDecision int       `bson:"awaiting_decision"`
	CreatedAt        time.Time `bson:"created_at"`
}

// MongoDBRepository implements repository.Store on MongoDB. Identifiers are
// stored as canonical UUID strings in _id.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository connects, pings and ensures the indexes the store relies on.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{client: client, db: client.Database(dbName), logger: logger}
	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return r, nil
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		zonesCollection: {
			{
				Keys:    bson.D{{Key: "farm_id", Value: 1}, {Key: "name_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("zones_farm_name_key"),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		observationsCollection: {
			{Keys: bson.D{{Key: "zone_id", Value: 1}, {Key: "uploaded_at", Value: -1}}},
		},
		recommendationsCollection: {
			{Keys: bson.D{{Key: "zone_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		},
	}

	for coll, idx := range indexes {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// CreateZone inserts a zone; the unique index on (farm_id, name_key) covers archived zones.
func (r *MongoDBRepository) CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error) {
	doc := newZoneDoc(zone)
	if _, err := r.db.Collection(zonesCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Zone{}, fmt.Errorf("zone %q: %w", zone.Name, models.ErrDuplicateZone)
		}
		return models.Zone{}, fmt.Errorf("%w: insert zone: %w", models.ErrPersistence, err)
	}
	return doc.toModel()
}

// GetZone loads a zone by id.
func (r *MongoDBRepository) GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error) {
	var doc zoneDoc
	if err := r.db.Collection(zonesCollection).FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return doc.toModel()
}

// ListZones returns zones newest first.
func (r *MongoDBRepository) ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error) {
	filter := bson.M{}
	if !includeArchived {
		// Matches both explicit nulls and missing fields.
		filter["archived_at"] = nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var docs []zoneDoc
	if err := r.findAll(ctx, zonesCollection, filter, opts, &docs); err != nil {
		return nil, fmt.Errorf("%w: list zones: %w", models.ErrPersistence, err)
	}

	zones := make([]models.Zone, 0, len(docs))
	for _, doc := range docs {
		zone, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// SetZoneArchivedAt sets or clears the archive timestamp.
func (r *MongoDBRepository) SetZoneArchivedAt(ctx context.Context, id uuid.UUID, archivedAt *time.Time) (models.Zone, error) {
	var doc zoneDoc
	err := r.db.Collection(zonesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"archived_at": bsonTimePtr(archivedAt)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return doc.toModel()
}

// ArchiveZone stamps archived_at with the null check in the filter.
func (r *MongoDBRepository) ArchiveZone(ctx context.Context, id uuid.UUID, at time.Time) (models.Zone, bool, error) {
	var doc zoneDoc
	err := r.db.Collection(zonesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "archived_at": nil},
		bson.M{"$set": bson.M{"archived_at": bsonTime(at)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Zone{}, false, nil
		}
		return models.Zone{}, false, fmt.Errorf("%w: archive zone: %w", models.ErrPersistence, err)
	}

	zone, err := doc.toModel()
	return zone, err == nil, err
}

// InsertObservation stores an observation.
func (r *MongoDBRepository) InsertObservation(ctx context.Context, obs models.Observation) (models.Observation, error) {
	doc := newObservationDoc(obs)
	if _, err := r.db.Collection(observationsCollection).InsertOne(ctx, doc); err != nil {
		return models.Observation{}, fmt.Errorf("%w: insert observation: %w", models.ErrPersistence, err)
	}
	return doc.toModel()
}

// ListObservations returns the newest observations of a zone.
func (r *MongoDBRepository) ListObservations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Observation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	var docs []observationDoc
	if err := r.findAll(ctx, observationsCollection, bson.M{"zone_id": zoneID.String()}, opts, &docs); err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", models.ErrPersistence, err)
	}

	out := make([]models.Observation, 0, len(docs))
	for _, doc := range docs {
		obs, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// InsertRecommendation stores a new recommendation.
func (r *MongoDBRepository) InsertRecommendation(ctx context.Context, rec models.Recommendation) (models.Recommendation, error) {
	doc := newRecommendationDoc(rec)
	if _, err := r.db.Collection(recommendationsCollection).InsertOne(ctx, doc); err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: insert recommendation: %w", models.ErrPersistence, err)
	}
	return doc.toModel()
}

// GetRecommendation loads a recommendation by id.
func (r *MongoDBRepository) GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error) {
	var doc recommendationDoc
	if err := r.db.Collection(recommendationsCollection).FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		return models.Recommendation{}, notFoundOr(err, "recommendation", id)
	}
	return doc.toModel()
}

// ListRecommendations returns the newest recommendations of a zone.
func (r *MongoDBRepository) ListRecommendations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Recommendation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	var docs []recommendationDoc
	if err := r.findAll(ctx, recommendationsCollection, bson.M{"zone_id": zoneID.String()}, opts, &docs); err != nil {
		return nil, fmt.Errorf("%w: list recommendations: %w", models.ErrPersistence, err)
	}

	out := make([]models.Recommendation, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateDecision applies the transition with the expected status in the
// filter, so the match and the write are one atomic document operation.
func (r *MongoDBRepository) UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (models.Recommendation, bool, error) {
	set := bson.M{
		"decision_status": string(update.Status),
		"decision_by":     update.DecisionBy,
		"decision_note":   update.DecisionNote,
		"decision_at":     bsonTime(update.DecisionAt),
	}
	if update.ExecutedAt != nil {
		set["executed_at"] = bsonTime(*update.ExecutedAt)
	}

	var doc recommendationDoc
	err := r.db.Collection(recommendationsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "decision_status": string(expected)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Recommendation{}, false, nil
		}
		return models.Recommendation{}, false, fmt.Errorf("%w: update decision: %w", models.ErrPersistence, err)
	}

	rec, err := doc.toModel()
	return rec, err == nil, err
}

// SaveDailyReport saves a daily report to the database.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	doc := dailyReportDoc{
		ID:               report.ID.String(),
		Date:             bsonTime(report.Date),
		ZoneCount:        report.ZoneCount,
		OKZones:          report.OKZones,
		StressedZones:    report.StressedZones,
		UnknownZones:     report.UnknownZones,
		AwaitingDecision: report.AwaitingDecision,
		CreatedAt:        bsonTime(report.CreatedAt),
	}
	if _, err := r.db.Collection(reportsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%w: failed to insert daily report: %w", models.ErrPersistence, err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) findAll(ctx context.Context, coll string, filter any, opts *options.FindOptions, out any) error {
	cursor, err := r.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

// BSON dates keep milliseconds. Documents are truncated before they are
// written so the value handed back on insert equals the one read later.
func bsonTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func bsonTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := bsonTime(*t)
	return &v
}

func newZoneDoc(zone models.Zone) zoneDoc {
	return zoneDoc{
		ID:         zone.ID.String(),
		FarmID:     zone.FarmID.String(),
		NameKey:    models.NameKey(zone.Name),
		Name:       zone.Name,
		CropType:   zone.CropType,
		ArchivedAt: bsonTimePtr(zone.ArchivedAt),
		CreatedAt:  bsonTime(zone.CreatedAt),
	}
}

func newObservationDoc(obs models.Observation) observationDoc {
	return observationDoc{
		ID:         obs.ID.String(),
		ZoneID:     obs.ZoneID.String(),
		Type:       string(obs.Type),
		ImageURL:   obs.ImageURL,
		CapturedAt: bsonTime(obs.CapturedAt),
		UploadedAt: bsonTime(obs.UploadedAt),
	}
}

func newRecommendationDoc(rec models.Recommendation) recommendationDoc {
	return recommendationDoc{
		ID:                 rec.ID.String(),
		ZoneID:             rec.ZoneID.String(),
		RecommendationType: string(rec.RecommendationType),
		DCIScore:           rec.DCIScore,
		ExplanationSummary: rec.ExplanationSummary,
		DecisionStatus:     string(rec.DecisionStatus),
		DecisionBy:         rec.DecisionBy,
		DecisionNote:       rec.DecisionNote,
		DecisionAt:         bsonTimePtr(rec.DecisionAt),
		ExecutedAt:         bsonTimePtr(rec.ExecutedAt),
		CreatedAt:          bsonTime(rec.CreatedAt),
	}
}

func (d zoneDoc) toModel() (models.Zone, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Zone{}, err
	}
	farmID, err := parseID(d.FarmID)
	if err != nil {
		return models.Zone{}, err
	}
	return models.Zone{
		ID:         id,
		FarmID:     farmID,
		Name:       d.Name,
		CropType:   d.CropType,
		ArchivedAt: utcPtr(d.ArchivedAt),
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

func (d observationDoc) toModel() (models.Observation, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Observation{}, err
	}
	zoneID, err := parseID(d.ZoneID)
	if err != nil {
		return models.Observation{}, err
	}
	return models.Observation{
		ID:         id,
		ZoneID:     zoneID,
		Type:       models.ObservationType(d.Type),
		ImageURL:   d.ImageURL,
		CapturedAt: d.CapturedAt.UTC(),
		UploadedAt: d.UploadedAt.UTC(),
	}, nil
}

func (d recommendationDoc) toModel() (models.Recommendation, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return models.Recommendation{}, err
	}
	zoneID, err := parseID(d.ZoneID)
	if err != nil {
		return models.Recommendation{}, err
	}
	return models.Recommendation{
		ID:                 id,
		ZoneID:             zoneID,
		RecommendationType: models.RecommendationType(d.RecommendationType),
		DCIScore:           d.DCIScore,
		ExplanationSummary: d.ExplanationSummary,
		DecisionStatus:     models.DecisionStatus(d.DecisionStatus),
		DecisionBy:         d.DecisionBy,
		DecisionNote:       d.DecisionNote,
		DecisionAt:         utcPtr(d.DecisionAt),
		ExecutedAt:         utcPtr(d.ExecutedAt),
		CreatedAt:          d.CreatedAt.UTC(),
	}, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: stored id %q: %w", models.ErrPersistence, raw, err)
	}
	return id, nil
}

func notFoundOr(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: load %s: %w", models.ErrPersistence, kind, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
