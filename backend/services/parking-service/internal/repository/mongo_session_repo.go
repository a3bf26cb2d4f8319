package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"smartparking/backend/services/parking-service/internal/models"
)

const sessionsCollection = "parking_sessions"

var _ SessionStore = (*MongoSessionRepository)(nil)

type sessionDocument struct {
	ID              string     `bson:"_id"`
	SlotID          string     `bson:"slot_id"`
	Holder          string     `bson:"holder"`
	EntryTime       time.Time  `bson:"entry_time"`
	ExitTime        *time.Time `bson:"exit_time,omitempty"`
	DurationMinutes *int64     `bson:"duration_minutes,omitempty"`
	Cost            *float64   `bson:"cost,omitempty"`
	Status          string     `bson:"status"`
	PaymentStatus   string     `bson:"payment_status"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toDocument(s *models.Session) sessionDocument {
	return sessionDocument{
		ID:              s.ID,
		SlotID:          s.SlotID,
		Holder:          s.Holder,
		EntryTime:       s.EntryTime,
		ExitTime:        s.ExitTime,
		DurationMinutes: s.DurationMinutes,
		Cost:            s.Cost,
		Status:          string(s.Status),
		PaymentStatus:   string(s.PaymentStatus),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (d *sessionDocument) toModel() *models.Session {
	s := &models.Session{
		ID:              d.ID,
		SlotID:          d.SlotID,
		Holder:          d.Holder,
		EntryTime:       d.EntryTime.UTC(),
		DurationMinutes: d.DurationMinutes,
		Cost:            d.Cost,
		Status:          models.SessionStatus(d.Status),
		PaymentStatus:   models.PaymentStatus(d.PaymentStatus),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.ExitTime != nil {
		exit := d.ExitTime.UTC()
		s.ExitTime = &exit
	}
	return s
}

// MongoSessionRepository stores sessions in a MongoDB collection.
type MongoSessionRepository struct {
	col *mongo.Collection
}

// NewMongoSessionRepository returns repository over db.parking_sessions.
func NewMongoSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{col: db.Collection(sessionsCollection)}
}

// Migrate creates indexes, including the partial unique index that allows one open session per slot.
func (r *MongoSessionRepository) Migrate(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "slot_id", Value: 1}},
			Options: options.Index().
				SetName("one_open_per_slot").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.SessionOpen)}),
		},
		{
			Keys: bson.D{{Key: "holder", Value: 1}, {Key: "entry_time", Value: -1}},
		},
	}
	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("repository/mongo: migrate indexes: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) Insert(ctx context.Context, session *models.Session) (string, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, toDocument(session)); err != nil {
		return "", fmt.Errorf("repository/mongo: insert session: %w", err)
	}
	return session.ID, nil
}

func (r *MongoSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	return r.findOne(ctx, bson.M{"_id": id}, options.FindOne())
}

func (r *MongoSessionRepository) FindOpenSession(ctx context.Context, slotID string) (*models.Session, error) {
	filter := bson.M{"slot_id": slotID, "status": string(models.SessionOpen)}
	opts := options.FindOne().SetSort(bson.D{{Key: "entry_time", Value: -1}})
	return r.findOne(ctx, filter, opts)
}

func (r *MongoSessionRepository) Update(ctx context.Context, id string, update models.SessionUpdate) error {
	set := bson.M{
		"exit_time":  update.ExitTime,
		"status":     string(update.Status),
		"updated_at": time.Now().UTC(),
	}
	unset := bson.M{}
	if update.DurationMinutes != nil {
		set["duration_minutes"] = *update.DurationMinutes
	} else {
		unset["duration_minutes"] = ""
	}
	if update.Cost != nil {
		set["cost"] = *update.Cost
	} else {
		unset["cost"] = ""
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	result, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("repository/mongo: update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *MongoSessionRepository) FindByHolder(ctx context.Context, holder string, limit int) ([]models.Session, error) {
	filter := bson.M{}
	if holder != "" {
		filter["holder"] = holder
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "entry_time", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))
	return r.find(ctx, filter, opts)
}

func (r *MongoSessionRepository) ListOpen(ctx context.Context) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "entry_time", Value: -1}})
	return r.find(ctx, bson.M{"status": string(models.SessionOpen)}, opts)
}

func (r *MongoSessionRepository) MarkPaid(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "status": string(models.SessionClosed)}
	update := bson.M{"$set": bson.M{
		"payment_status": string(models.PaymentPaid),
		"updated_at":     time.Now().UTC(),
	}}
	result, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("repository/mongo: mark paid: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrSessionNotClosed
}

func (r *MongoSessionRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptionsBuilder) (*models.Session, error) {
	var doc sessionDocument
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("repository/mongo: find session: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoSessionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Session, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("repository/mongo: list sessions: %w", err)
	}
	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("repository/mongo: decode sessions: %w", err)
	}

	sessions := make([]models.Session, 0, len(docs))
	for i := range docs {
		sessions = append(sessions, *docs[i].toModel())
	}
	return sessions, nil
}
