// Package store is the persistence layer over the organizations collection.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"anajobs/packages/domain"
	"anajobs/packages/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
)

const insertBatchSize = 500

type Storage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type Config struct {
	URI            string
	DatabaseName   string
	CollectionName string
}

// New connects to the document store and verifies the connection with a ping.
// Connection failure here is fatal to the run; callers exit non-zero.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to document store: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	slog.Info("Connected to document store", "database", cfg.DatabaseName, "collection", cfg.CollectionName)
	return &Storage{
		client:     client,
		collection: client.Database(cfg.DatabaseName).Collection(cfg.CollectionName),
	}, nil
}

func (s *Storage) Close(ctx context.Context) {
	if err := s.client.Disconnect(ctx); err != nil {
		slog.Error("Failed to disconnect from document store", "error", err)
	}
}

// EnsureIndexes creates the unique name index plus the root/jobs lookup
// indexes.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "root", Value: 1}}},
		{Keys: bson.D{{Key: "jobs", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	return nil
}

// BulkInsert writes organizations in parallel unordered batches. Duplicate
// key errors are tolerated; the number of documents actually inserted is
// returned.
func (s *Storage) BulkInsert(ctx context.Context, orgs []domain.Organization) (int, error) {
	if len(orgs) == 0 {
		return 0, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	inserted := make([]int, (len(orgs)+insertBatchSize-1)/insertBatchSize)

	for i := 0; i < len(orgs); i += insertBatchSize {
		batchIdx := i / insertBatchSize
		batch := orgs[i:min(i+insertBatchSize, len(orgs))]
		g.Go(func() error {
			docs := make([]interface{}, len(batch))
			for j, org := range batch {
				docs[j] = org
			}
			res, err := s.collection.InsertMany(gCtx, docs, options.InsertMany().SetOrdered(false))
			if err != nil && !isDuplicateOnly(err) {
				return fmt.Errorf("inserting batch %d: %w", batchIdx, err)
			}
			if res != nil {
				inserted[batchIdx] = len(res.InsertedIDs)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range inserted {
		total += n
	}
	slog.Info("Bulk insert complete", "requested", len(orgs), "inserted", total)
	return total, nil
}

func isDuplicateOnly(err error) bool {
	bwe, ok := err.(mongo.BulkWriteException)
	if !ok {
		return mongo.IsDuplicateKeyError(err)
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}

// Reset drops every document from the collection. Used by the total-reset
// load path; callers are expected to have confirmed first.
func (s *Storage) Reset(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("clearing collection: %w", err)
	}
	slog.Info("Cleared existing data from collection", "deleted", res.DeletedCount)
	return res.DeletedCount, nil
}

// TitleUpdate captures one extraction outcome to persist.
type TitleUpdate struct {
	Titles           []string // nil means "no valid titles"; stored as null
	Method           domain.ExtractionMethod
	CorrectedJobsURL string // non-empty only when discovery corrected the stored URL
	PageLanguage     string
}

// UpdateJobTitles writes the extraction outcome back to the organization
// document. A nil title slice is stored as an explicit null; an empty slice
// is never written.
func (s *Storage) UpdateJobTitles(ctx context.Context, name string, upd TitleUpdate) error {
	set := bson.M{
		"job_titles":                   titlesOrNull(upd.Titles),
		"job_titles_updated_at":        time.Now().UTC().Format(time.RFC3339),
		"job_titles_extraction_method": string(upd.Method),
		"scraped":                      true,
	}
	if upd.PageLanguage != "" {
		set["jobs_page_language"] = upd.PageLanguage
	}
	if upd.CorrectedJobsURL != "" {
		set["jobs"] = upd.CorrectedJobsURL
		set["jobs_corrected_at"] = time.Now().UTC().Format(time.RFC3339)
		set["jobs_correction_method"] = "oracle_discovery"
	}

	start := time.Now()
	res, err := s.collection.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": set})
	metrics.DBQueryDuration.WithLabelValues("update_job_titles").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("updating %q: %w", name, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("organization %q not found", name)
	}
	return nil
}

func titlesOrNull(titles []string) interface{} {
	if len(titles) == 0 {
		return nil
	}
	return titles
}

// FindOrganizations returns organizations in collection iteration order,
// optionally capped.
func (s *Storage) FindOrganizations(ctx context.Context, limit int64) ([]domain.Organization, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer cur.Close(ctx)

	var orgs []domain.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, fmt.Errorf("decoding organizations: %w", err)
	}
	return orgs, nil
}

// FindByName returns the named organization or mongo.ErrNoDocuments.
func (s *Storage) FindByName(ctx context.Context, name string) (domain.Organization, error) {
	var org domain.Organization
	err := s.collection.FindOne(ctx, bson.M{"name": name}).Decode(&org)
	return org, err
}

// Search does a case-insensitive substring match on organization names.
func (s *Storage) Search(ctx context.Context, term string, limit int64) ([]domain.Organization, error) {
	filter := bson.M{"name": bson.M{"$regex": escapeRegex(term), "$options": "i"}}
	opts := options.Find().SetLimit(limit)

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", term, err)
	}
	defer cur.Close(ctx)

	var orgs []domain.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// ByDomain filters organizations whose root URL matches the given domain
// suffix (e.g. ".org").
func (s *Storage) ByDomain(ctx context.Context, suffix string) ([]domain.Organization, error) {
	filter := bson.M{"root": bson.M{"$regex": escapeRegex(suffix), "$options": "i"}}
	cur, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("filtering by domain %q: %w", suffix, err)
	}
	defer cur.Close(ctx)

	var orgs []domain.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

// Stats are the sanity-check numbers for the stats command.
type Stats struct {
	Total      int64
	Scraped    int64
	WithTitles int64
	OrgDomains int64
}

func (s *Storage) CollectionStats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error

	if st.Total, err = s.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return st, fmt.Errorf("counting documents: %w", err)
	}
	if st.Scraped, err = s.collection.CountDocuments(ctx, bson.M{"scraped": true}); err != nil {
		return st, err
	}
	if st.WithTitles, err = s.collection.CountDocuments(ctx, bson.M{"job_titles": bson.M{"$type": "array"}}); err != nil {
		return st, err
	}
	if st.OrgDomains, err = s.collection.CountDocuments(ctx, bson.M{"root": bson.M{"$regex": `\.org`, "$options": "i"}}); err != nil {
		return st, err
	}
	return st, nil
}

func escapeRegex(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
