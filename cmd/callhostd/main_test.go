package main

import (
	"context"
	"testing"

	"github.com/helpora/partnercall/internal/adapters/memstore"
	"github.com/helpora/partnercall/internal/adapters/signalstore"
	"github.com/helpora/partnercall/internal/config"
)

func TestBuildStoresDevMode(t *testing.T) {
	store, dir := buildStores(&config.Config{Mode: "dev"})
	mem, ok := store.(*memstore.Store)
	if !ok {
		t.Fatalf("dev mode must use the in-memory store, got %T", store)
	}
	if any(dir) != any(store) {
		t.Fatal("dev mode must serve the directory from the same store")
	}
	customers, err := mem.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(customers) == 0 {
		t.Fatal("dev store must come seeded with customers")
	}
}

func TestBuildStoresRemote(t *testing.T) {
	cfg := &config.Config{Mode: "release", SignalingURL: "http://records", SignalingWSURL: "ws://records"}
	store, dir := buildStores(cfg)
	if _, ok := store.(*signalstore.Client); !ok {
		t.Fatalf("release mode must use the remote store, got %T", store)
	}
	if _, ok := dir.(*signalstore.Client); !ok {
		t.Fatalf("release mode must resolve customers remotely, got %T", dir)
	}
}
