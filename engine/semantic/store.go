// Package semantic provides a Qdrant-backed dense index for deployments
// where the catalog outgrows the in-process store or the index must be
// shared across replicas.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yokharian/ia-sales-agent/engine/search"
)

// VectorStore is the sole owner of all Qdrant operations. It implements
// the search engine's dense-index contract: Rebuild replaces the whole
// collection and Query returns catalog positions with similarities.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

var _ search.DenseIndex = (*VectorStore)(nil)

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// Rebuild drops and recreates the collection, then upserts one point per
// document. Each point's payload records the document's position so search
// results can be mapped back to catalog order.
func (v *VectorStore) Rebuild(ctx context.Context, texts []string, vectors [][]float32) error {
	if err := v.reset(ctx, dims(vectors)); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, vec := range vectors {
		payload := map[string]*pb.Value{
			"position": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}},
		}
		if i < len(texts) {
			payload["text"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: texts[i]}}
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(v.collection, i)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Query performs k-NN similarity search. Qdrant's cosine score is already a
// similarity, so it is passed through unchanged.
func (v *VectorStore) Query(ctx context.Context, vector []float32, k int) ([]search.DenseHit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]search.DenseHit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		pos, ok := r.GetPayload()["position"]
		if !ok {
			continue
		}
		hits = append(hits, search.DenseHit{
			Position:   int(pos.GetIntegerValue()),
			Similarity: float64(r.GetScore()),
		})
	}
	return hits, nil
}

// reset deletes the collection if present and recreates it with the given
// dimensionality. A zero dims means there is nothing to index and only the
// delete happens.
func (v *VectorStore) reset(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil {
				return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
			}
			break
		}
	}
	if dims == 0 {
		return nil
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// pointID derives a stable UUID from the collection name and document
// position, so rebuilding the same catalog upserts the same points.
func pointID(collection string, position int) string {
	name := fmt.Sprintf("%s/%d", collection, position)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func dims(vectors [][]float32) int {
	if len(vectors) == 0 {
		return 0
	}
	return len(vectors[0])
}
