package remote

import (
	"context"
	"testing"

	"sui-replay/internal/fetch"
)

// Compile-time assertions that the remote collaborators satisfy the
// interfaces the orchestrator drives against.
var (
	_ fetch.CheckpointFetcher   = (*ArchiveClient)(nil)
	_ fetch.ArchiveObjectFetcher = (*ArchiveClient)(nil)
	_ fetch.PackageFetcher      = (*GraphQLClient)(nil)
)

func TestApiKeyCredsEmptyKeyReturnsNil(t *testing.T) {
	c := apiKeyCreds{}
	md, err := c.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md != nil {
		t.Fatalf("expected nil metadata for an empty key, got %v", md)
	}
	if c.RequireTransportSecurity() {
		t.Fatal("expected RequireTransportSecurity to be false")
	}
}

func TestApiKeyCredsBearerHeader(t *testing.T) {
	c := apiKeyCreds{key: "secret"}
	md, err := c.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md["authorization"] != "Bearer secret" {
		t.Fatalf("authorization = %q, want %q", md["authorization"], "Bearer secret")
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	if c.Name() != "json" {
		t.Fatalf("Name() = %q, want json", c.Name())
	}
	bz, err := c.Marshal(getObjectRequest{ID: "0x2", Version: 4})
	if err != nil {
		t.Fatal(err)
	}
	var out getObjectRequest
	if err := c.Unmarshal(bz, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "0x2" || out.Version != 4 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDialArchiveDoesNotBlock(t *testing.T) {
	// grpc.NewClient does not dial eagerly, so this should succeed even
	// against an address nothing is listening on.
	client, err := DialArchive("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("DialArchive: %v", err)
	}
	defer client.Close()
}
