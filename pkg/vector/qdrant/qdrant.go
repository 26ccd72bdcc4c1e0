// Package qdrant provides a Qdrant-backed vector driver over the gRPC client.
package qdrant

import (
	"context"
	"fmt"

	qdrantcli "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/vector"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "engram_chunks"

// Driver implements vector.Driver against a Qdrant instance.
type Driver struct {
	client     *qdrantcli.Client
	collection string
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host.
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string

	// Dimensions is the embedding vector size, required to create the
	// collection on first use.
	Dimensions uint
}

// NewDriver connects to Qdrant and ensures the collection exists with a
// cosine distance metric, so query scores convert directly to cosine
// distances.
func NewDriver(ctx context.Context, c Config, logger *zap.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("%w: qdrant host is required", vector.ErrConnection)
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrantcli.NewClient(&qdrantcli.Config{
		Host: c.Host,
		Port: c.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrantcli.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrantcli.NewVectorsConfig(&qdrantcli.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrantcli.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", collection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", c.Host),
		zap.String("collection", collection),
		zap.Uint("dimensions", c.Dimensions),
	)

	return &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}, nil
}

// Add stores documents with their embeddings, overwriting existing points.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrantcli.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrantcli.PointStruct{
			Id:      qdrantcli.NewID(doc.ID),
			Vectors: qdrantcli.NewVectors(doc.Embedding...),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrantcli.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
		Wait:           qdrantcli.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK nearest documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	scored, err := d.client.Query(ctx, &qdrantcli.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrantcli.NewQuery(embedding...),
		Limit:          qdrantcli.PtrOf(uint64(topK)),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(scored))
	for _, point := range scored {
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID: point.GetId().GetUuid(),
			},
			// Qdrant returns cosine similarity for cosine collections.
			Distance: 1 - float64(point.GetScore()),
		})
	}

	d.logger.Debug("queried qdrant",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrantcli.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantcli.NewID(id))
	}

	points, err := d.client.Get(ctx, &qdrantcli.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithVectors:    qdrantcli.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		doc := vector.Document{
			ID: point.GetId().GetUuid(),
		}
		if v := point.GetVectors().GetVector(); v != nil {
			doc.Embedding = v.GetData()
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrantcli.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrantcli.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qdrantcli.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrantcli.NewPointsSelector(pointIDs...),
		Wait:           qdrantcli.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
