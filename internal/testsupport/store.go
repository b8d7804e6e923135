package testsupport

import (
	"context"
	"testing"
	"time"

	"mangawatch/internal/config"
	"mangawatch/internal/store"
)

// MustOpenStore opens a store against the test config and closes it when the
// test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustCreateTitle registers a title due immediately so orchestrator tests can
// pick it up without clock manipulation.
func MustCreateTitle(t testing.TB, st *store.Store, collectionID, sourceID, name string) *store.Title {
	t.Helper()

	title, err := st.CreateTitle(context.Background(), collectionID, sourceID, name, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("create title: %v", err)
	}
	return title
}
