// Package remote implements the two external collaborators named in spec
// §4.9 step 1 and §4.5: a gRPC-style historical archive client for
// checkpoints/objects, and a GraphQL-style client for package bytecode,
// object types, and dynamic-field lookups.
//
// Grounded on the teacher's core/ai.go InitAI, which dials a
// *grpc.ClientConn with insecure transport credentials and drives it through
// a thin stub interface; this package follows the same dial/invoke shape
// but against the replay engine's archive service instead of an AI oracle.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"sui-replay/internal/errs"
	"sui-replay/internal/rtypes"
)

// jsonCodecName is registered with grpc-go so Invoke can round-trip this
// package's request/response structs without a .proto-generated codec; the
// archive service this client targets is assumed to speak the same
// JSON-over-gRPC convention.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// apiKeyCreds attaches a static bearer token to every call, the per-RPC
// credentials shape grpc-go expects.
type apiKeyCreds struct {
	key string
}

func (c apiKeyCreds) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	if c.key == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + c.key}, nil
}

func (c apiKeyCreds) RequireTransportSecurity() bool { return false }

// ArchiveClient is the gRPC-style historical fetcher (spec §4.9 step 1).
type ArchiveClient struct {
	conn *grpc.ClientConn
}

// DialArchive opens a connection to the historical archive service. apiKey
// may be empty.
func DialArchive(endpoint, apiKey string) (*ArchiveClient, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(apiKeyCreds{key: apiKey}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Fetch, err, "dial archive endpoint")
	}
	return &ArchiveClient{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *ArchiveClient) Close() error { return c.conn.Close() }

type getCheckpointRequest struct {
	SequenceNumber uint64 `json:"sequence_number"`
}

// FetchCheckpoint implements fetch.CheckpointFetcher.
func (c *ArchiveClient) FetchCheckpoint(ctx context.Context, sequenceNumber uint64) (*rtypes.CheckpointBlob, error) {
	var resp rtypes.CheckpointBlob
	req := getCheckpointRequest{SequenceNumber: sequenceNumber}
	if err := c.conn.Invoke(ctx, "/sui.rpc.v2.ArchiveService/GetCheckpoint", &req, &resp); err != nil {
		return nil, errs.Wrapf(errs.Fetch, err, "fetch checkpoint %d", sequenceNumber)
	}
	return &resp, nil
}

type getObjectRequest struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
}

// FetchObject implements fetch.ArchiveObjectFetcher.
func (c *ArchiveClient) FetchObject(ctx context.Context, id string, version uint64) (*rtypes.SerializedObject, error) {
	var resp rtypes.SerializedObject
	req := getObjectRequest{ID: id, Version: version}
	if err := c.conn.Invoke(ctx, "/sui.rpc.v2.ArchiveService/GetObject", &req, &resp); err != nil {
		return nil, errs.Wrapf(errs.Fetch, err, "fetch object %s@%d", id, version)
	}
	return &resp, nil
}

// GraphQLClient is the GraphQL-style collaborator (spec §4.5, §4.9 step 3):
// package bytecode, object types, and dynamic-field lookups.
type GraphQLClient struct {
	cli *graphql.Client
}

// NewGraphQLClient builds a client against endpoint.
func NewGraphQLClient(endpoint string) *GraphQLClient {
	return &GraphQLClient{cli: graphql.NewClient(endpoint, nil)}
}

// ObjectType implements synth.PackageQuery.
func (g *GraphQLClient) ObjectType(ctx context.Context, id string, checkpoint *uint64) (string, error) {
	var q struct {
		Object struct {
			AsMoveObject struct {
				Contents struct {
					Type struct {
						Repr string
					}
				}
			} `graphql:"asMoveObject"`
		} `graphql:"object(address: $address)"`
	}
	vars := map[string]any{"address": graphql.String(id)}
	if checkpoint != nil {
		vars["checkpoint"] = graphql.Int(*checkpoint)
	}
	if err := g.cli.Query(ctx, &q, vars); err != nil {
		return "", errs.Wrapf(errs.Fetch, err, "query object type for %s", id)
	}
	return q.Object.AsMoveObject.Contents.Type.Repr, nil
}

// FetchPackage implements fetch.PackageFetcher: fetches a package's modules
// as raw bytecode, leaving Move bytecode decoding to the caller's
// PackageDecoder (spec §1's external-decoder boundary).
func (g *GraphQLClient) FetchPackage(ctx context.Context, address string, checkpoint *uint64) (*rtypes.PackageData, error) {
	var q struct {
		Object struct {
			AsMovePackage struct {
				Modules struct {
					Nodes []struct {
						Name  string
						Bytes string
					}
				}
			} `graphql:"asMovePackage"`
		} `graphql:"object(address: $address)"`
	}
	vars := map[string]any{"address": graphql.String(address)}
	if checkpoint != nil {
		vars["checkpoint"] = graphql.Int(*checkpoint)
	}
	if err := g.cli.Query(ctx, &q, vars); err != nil {
		return nil, errs.Wrapf(errs.Fetch, err, "query package %s", address)
	}
	pkg := &rtypes.PackageData{Address: address}
	for _, m := range q.Object.AsMovePackage.Modules.Nodes {
		pkg.Modules = append(pkg.Modules, rtypes.ModuleEntry{Name: m.Name, Bytecode: []byte(m.Bytes)})
	}
	return pkg, nil
}

// FetchDynamicField implements the raw remote half of a
// synth.KeyBasedChildFetcher; its signature is the raw lookup
// Synthesizer.WrapKeyBasedWithFallback adapts. cmd/replay installs it
// without that wrapper, so when the service reports a type with no
// contents the caller receives empty bytes.
func (g *GraphQLClient) FetchDynamicField(ctx context.Context, parent, childID, keyType string, keyBytes []byte) (string, []byte, bool, error) {
	var q struct {
		Object struct {
			DynamicField struct {
				Value struct {
					Type struct {
						Repr string
					}
					Bcs string
				}
			} `graphql:"dynamicField(name: $name)"`
		} `graphql:"object(address: $address)"`
	}
	vars := map[string]any{
		"address": graphql.String(parent),
		"name": map[string]any{
			"type":  graphql.String(keyType),
			"bcs":   graphql.String(fmt.Sprintf("%x", keyBytes)),
		},
	}
	if err := g.cli.Query(ctx, &q, vars); err != nil {
		return "", nil, false, errs.Wrapf(errs.Fetch, err, "query dynamic field %s on %s", childID, parent)
	}
	typeStr := q.Object.DynamicField.Value.Type.Repr
	if typeStr == "" {
		return "", nil, false, nil
	}
	return typeStr, []byte(q.Object.DynamicField.Value.Bcs), true, nil
}
