// Package vectordb's Qdrant provider. The teacher's go.mod already
// declared github.com/qdrant/go-client but its implementation talked to
// Qdrant over raw net/http; this rewrites it against the real gRPC
// client so the declared dependency is genuinely exercised.
package vectordb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantClient is the primary, production vector store provider.
type QdrantClient struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
}

// NewQdrantClient dials addr (host:port gRPC) and targets collection.
func NewQdrantClient(addr, collection string) (*QdrantClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &QdrantClient{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  collection,
	}, nil
}

// EnsureCollection creates the collection with the declared dimension
// and cosine distance if it does not already exist.
func (q *QdrantClient) EnsureCollection(ctx context.Context, dimensions int) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	if err == nil {
		return nil
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", q.collection, err)
	}

	for _, field := range []string{"project_id", "file_path", "language", "symbol_type", "module"} {
		_, _ = q.collections.CreatePayloadIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
	}
	return nil
}

// Upsert writes or overwrites points. Point IDs are re-keyed onto a
// deterministic UUID since Qdrant requires a UUID or uint64 point id,
// not an arbitrary string ChunkHash.
func (q *QdrantClient) Upsert(ctx context.Context, pts []Point) error {
	protoPoints := make([]*qdrant.PointStruct, 0, len(pts))
	for _, p := range pts {
		protoPoints = append(protoPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(stringToUUID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payloadToValue(p.ID, p.Payload),
		})
	}
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         protoPoints,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

// Search returns the topK nearest points to query.Vector, scoped by
// query.Filter.ProjectID, sorted by descending similarity.
func (q *QdrantClient) Search(ctx context.Context, query SearchQuery) ([]SearchResult, error) {
	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         query.Vector,
		Limit:          uint64(query.TopK),
		Filter:         filterToProto(query.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &query.ScoreThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	out := make([]SearchResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		out = append(out, SearchResult{
			ID:      payloadString(r.GetPayload(), "chunk_id"),
			Score:   r.GetScore(),
			Payload: valueToPayload(r.GetPayload()),
		})
	}
	return out, nil
}

// Delete removes points by their original ChunkHash ids.
func (q *QdrantClient) Delete(ctx context.Context, ids []string) error {
	qids := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qids = append(qids, qdrant.NewID(stringToUUID(id)))
	}
	_, err := q.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qids...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete: %w", err)
	}
	return nil
}

// DeleteByFilter removes all points matching filter (used for DeleteByProject).
func (q *QdrantClient) DeleteByFilter(ctx context.Context, filter Filter) error {
	_, err := q.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filterToProto(filter)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete by filter: %w", err)
	}
	return nil
}

// Count returns the number of points, optionally scoped by projectID.
func (q *QdrantClient) Count(ctx context.Context, projectID string) (int64, error) {
	var filter *qdrant.Filter
	if projectID != "" {
		filter = filterToProto(Filter{ProjectID: projectID})
	}
	resp, err := q.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

// Health pings the collection info endpoint.
func (q *QdrantClient) Health(ctx context.Context) error {
	_, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	return err
}

// Close tears down the gRPC connection.
func (q *QdrantClient) Close() error {
	return q.conn.Close()
}

func filterToProto(f Filter) *qdrant.Filter {
	if f.ProjectID == "" && f.Module == "" && f.Language == "" && f.SymbolType == "" {
		return nil
	}
	var must []*qdrant.Condition
	add := func(field, value string) {
		if value == "" {
			return
		}
		must = append(must, qdrant.NewMatch(field, value))
	}
	add("project_id", f.ProjectID)
	add("module", f.Module)
	add("language", f.Language)
	add("symbol_type", f.SymbolType)
	return &qdrant.Filter{Must: must}
}

func payloadToValue(id string, p Payload) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"chunk_id":     qdrant.NewValueString(id),
		"project_id":   qdrant.NewValueString(p.ProjectID),
		"file_path":    qdrant.NewValueString(p.FilePath),
		"symbol":       qdrant.NewValueString(p.Symbol),
		"symbol_type":  qdrant.NewValueString(p.SymbolType),
		"language":     qdrant.NewValueString(p.Language),
		"module":       qdrant.NewValueString(p.Module),
		"start_line":   qdrant.NewValueInt(int64(p.StartLine)),
		"end_line":     qdrant.NewValueInt(int64(p.EndLine)),
		"content":      qdrant.NewValueString(p.Content),
		"content_hash": qdrant.NewValueString(p.ContentHash),
		"indexed_at":   qdrant.NewValueString(p.IndexedAt),
	}
}

func valueToPayload(m map[string]*qdrant.Value) Payload {
	return Payload{
		ProjectID:   payloadString(m, "project_id"),
		FilePath:    payloadString(m, "file_path"),
		Symbol:      payloadString(m, "symbol"),
		SymbolType:  payloadString(m, "symbol_type"),
		Language:    payloadString(m, "language"),
		Module:      payloadString(m, "module"),
		StartLine:   int(payloadInt(m, "start_line")),
		EndLine:     int(payloadInt(m, "end_line")),
		Content:     payloadString(m, "content"),
		ContentHash: payloadString(m, "content_hash"),
		IndexedAt:   payloadString(m, "indexed_at"),
	}
}

func payloadString(m map[string]*qdrant.Value, key string) string {
	if v, ok := m[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(m map[string]*qdrant.Value, key string) int64 {
	if v, ok := m[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

// stringToUUID deterministically derives a UUID-shaped string from an
// arbitrary id, since Qdrant point ids must be a UUID or uint64 and
// ChunkHash is neither.
func stringToUUID(s string) string {
	sum := sha256.Sum256([]byte(s))
	hexStr := hex.EncodeToString(sum[:16])
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		hexStr[0:8], hexStr[8:12], hexStr[12:16], hexStr[16:20], hexStr[20:32])
}
