package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"player-progression/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	statsCollection    = "player_stats"
	scoresCollection   = "game_scores"
	profilesCollection = "player_profiles"
)

// Mongo is the document-store backend. One document per player, replaced
// whole on every result.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// statsDocument is the BSON shape of models.PlayerStats.
type statsDocument struct {
	ID           string               `bson:"_id"`
	UserID       string               `bson:"user_id"`
	Global       models.GlobalStats   `bson:"global_stats"`
	Games        models.GameTable     `bson:"games"`
	Achievements []models.Achievement `bson:"achievements"`
	Badges       []models.Badge       `bson:"badges"`
	TotalScore   int64                `bson:"total_score"`
	Version      int64                `bson:"version"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func toDocument(s *models.PlayerStats) statsDocument {
	return statsDocument{
		ID:           s.ID,
		UserID:       s.UserID,
		Global:       s.Global,
		Games:        s.GameRecords(),
		Achievements: append([]models.Achievement{}, s.Achievements...),
		Badges:       append([]models.Badge{}, s.Badges...),
		TotalScore:   s.TotalScore,
		Version:      s.Version,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (d statsDocument) toModel() *models.PlayerStats {
	s := models.NewPlayerStats(d.ID, d.UserID, d.CreatedAt)
	s.Global = d.Global
	if d.Games != nil {
		s.SetGames(d.Games)
	}
	s.Achievements = append(s.Achievements, d.Achievements...)
	s.Badges = append(s.Badges, d.Badges...)
	s.TotalScore = d.TotalScore
	s.Version = d.Version
	s.UpdatedAt = d.UpdatedAt
	return s
}

// NewMongo connects, pings and ensures the indexes the backend relies on.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(statsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{
			{Key: "global_stats.level", Value: -1},
			{Key: "global_stats.xp", Value: -1},
			{Key: "total_score", Value: -1},
		}},
	})
	if err != nil {
		return fmt.Errorf("create stats indexes: %w", err)
	}
	_, err = m.db.Collection(scoresCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create score indexes: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) GetStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var doc statsDocument
	err := m.db.Collection(statsCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (m *Mongo) CreateStats(ctx context.Context, stats *models.PlayerStats) error {
	_, err := m.db.Collection(statsCollection).InsertOne(ctx, toDocument(stats))
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

// SaveResult replaces the document filtered on the expected version. The
// score log insert follows the replace; a standalone server offers no
// multi-document transaction.
func (m *Mongo) SaveResult(ctx context.Context, stats *models.PlayerStats, expectedVersion int64, score *models.GameScore) error {
	res, err := m.db.Collection(statsCollection).ReplaceOne(ctx,
		bson.M{"user_id": stats.UserID, "version": expectedVersion},
		toDocument(stats),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	if score != nil {
		if _, err := m.db.Collection(scoresCollection).InsertOne(ctx, score); err != nil {
			return fmt.Errorf("insert game score: %w", err)
		}
	}
	return nil
}

func (m *Mongo) ListScores(ctx context.Context, userID string, offset, limit int) ([]models.GameScore, int64, error) {
	coll := m.db.Collection(scoresCollection)
	filter := bson.M{"user_id": userID}
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	scores := []models.GameScore{}
	if err := cur.All(ctx, &scores); err != nil {
		return nil, 0, err
	}
	return scores, total, nil
}

func (m *Mongo) ScoresSince(ctx context.Context, since time.Time, limit int) ([]models.GameScore, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(scoresCollection).Find(ctx, bson.M{"created_at": bson.M{"$gt": since}}, opts)
	if err != nil {
		return nil, err
	}
	var scores []models.GameScore
	err = cur.All(ctx, &scores)
	return scores, err
}

func (m *Mongo) TopPlayers(ctx context.Context, limit int) ([]models.LeaderboardRow, error) {
	cur, err := m.db.Collection(statsCollection).Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{
			{Key: "global_stats.level", Value: -1},
			{Key: "global_stats.xp", Value: -1},
			{Key: "total_score", Value: -1},
			{Key: "user_id", Value: 1},
		}).
		SetLimit(int64(clampLimit(limit))))
	if err != nil {
		return nil, err
	}
	var docs []statsDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.UserID
	}
	names, err := m.displayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]models.LeaderboardRow, len(docs))
	for i, d := range docs {
		rows[i] = models.LeaderboardRow{
			UserID:      d.UserID,
			DisplayName: names[d.UserID],
			Level:       d.Global.Level,
			XP:          d.Global.XP,
			TotalScore:  d.TotalScore,
			Badges:      d.Badges,
		}
	}
	return rows, nil
}

func (m *Mongo) displayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	cur, err := m.db.Collection(profilesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, err
	}
	var profiles []models.PlayerProfile
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		names[p.UserID] = p.DisplayName
	}
	return names, nil
}

func (m *Mongo) UpsertProfiles(ctx context.Context, profiles []models.PlayerProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, len(profiles))
	for i, p := range profiles {
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.UserID}).
			SetReplacement(p).
			SetUpsert(true)
	}
	_, err := m.db.Collection(profilesCollection).BulkWrite(ctx, writes)
	return err
}
