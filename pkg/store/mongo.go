package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cruxhq/crux/pkg/errorsx"
	"github.com/cruxhq/crux/pkg/logging"
	"github.com/cruxhq/crux/pkg/scenario"
)

const (
	collScenarios = "scenarios"
	collSessions  = "game_sessions"
)

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// Mongo is the production Store backed by MongoDB. Session IDs are stored
// as their canonical string form; BSON binary UUIDs buy nothing here and
// complicate manual inspection.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Database == "" {
		cfg.Database = "crux"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	logger := logging.NewComponentLogger(slog.Default(), "mongo_store")
	logger.Info("mongo_connected", slog.String("database", cfg.Database))
	return &Mongo{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

func (m *Mongo) CreateScenario(ctx context.Context, sc scenario.Scenario) error {
	_, err := m.db.Collection(collScenarios).InsertOne(ctx, sc)
	return errorsx.Wrap(err, errorsx.ReasonStoreWrite)
}

func (m *Mongo) GetScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	var sc scenario.Scenario
	err := m.db.Collection(collScenarios).FindOne(ctx, bson.M{"id": id}).Decode(&sc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scenario.Scenario{}, ErrNotFound
	}
	if err != nil {
		return scenario.Scenario{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return sc, nil
}

func (m *Mongo) ListScenarios(ctx context.Context) ([]scenario.Scenario, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.db.Collection(collScenarios).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	defer cursor.Close(ctx)
	var out []scenario.Scenario
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return out, nil
}

func (m *Mongo) CreateSession(ctx context.Context, gs scenario.GameSession) error {
	_, err := m.db.Collection(collSessions).InsertOne(ctx, sessionDoc(gs))
	return errorsx.Wrap(err, errorsx.ReasonStoreWrite)
}

func (m *Mongo) GetSession(ctx context.Context, id uuid.UUID) (scenario.GameSession, error) {
	var doc sessionRecord
	err := m.db.Collection(collSessions).FindOne(ctx, bson.M{"session_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scenario.GameSession{}, ErrNotFound
	}
	if err != nil {
		return scenario.GameSession{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return doc.toSession()
}

func (m *Mongo) EndSession(ctx context.Context, id uuid.UUID, score int, justification string) error {
	update := bson.M{"$set": bson.M{
		"status":              scenario.SessionFinished,
		"final_score":         score,
		"final_justification": justification,
		"ended_at":            time.Now().UTC(),
	}}
	res, err := m.db.Collection(collSessions).UpdateOne(ctx, bson.M{"session_id": id.String()}, update)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonStoreWrite)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// sessionRecord mirrors GameSession with the UUID flattened to a string.
type sessionRecord struct {
	SessionID     string                 `bson:"session_id"`
	UserID        string                 `bson:"user_id"`
	ScenarioID    string                 `bson:"scenario_id"`
	Status        scenario.SessionStatus `bson:"status"`
	History       []scenario.Entry       `bson:"conversation_history"`
	FinalScore    *int                   `bson:"final_score,omitempty"`
	Justification string                 `bson:"final_justification,omitempty"`
	CreatedAt     time.Time              `bson:"created_at"`
	EndedAt       *time.Time             `bson:"ended_at,omitempty"`
}

func sessionDoc(gs scenario.GameSession) sessionRecord {
	return sessionRecord{
		SessionID:     gs.SessionID.String(),
		UserID:        gs.UserID,
		ScenarioID:    gs.ScenarioID,
		Status:        gs.Status,
		History:       gs.History,
		FinalScore:    gs.FinalScore,
		Justification: gs.Justification,
		CreatedAt:     gs.CreatedAt,
		EndedAt:       gs.EndedAt,
	}
}

func (r sessionRecord) toSession() (scenario.GameSession, error) {
	id, err := uuid.Parse(r.SessionID)
	if err != nil {
		return scenario.GameSession{}, errorsx.Wrap(err, errorsx.ReasonStoreRead)
	}
	return scenario.GameSession{
		SessionID:     id,
		UserID:        r.UserID,
		ScenarioID:    r.ScenarioID,
		Status:        r.Status,
		History:       r.History,
		FinalScore:    r.FinalScore,
		Justification: r.Justification,
		CreatedAt:     r.CreatedAt,
		EndedAt:       r.EndedAt,
	}, nil
}

var _ Store = (*Mongo)(nil)
