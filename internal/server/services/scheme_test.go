package services

import (
	"context"
	"errors"
	"testing"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/server/models"
)

func newSchemeFixture(t *testing.T) (*SchemeService, *fakeRepoManager) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	rm := newFakeRepoManager()
	return NewSchemeService(db, rm, NewBufferService(db, rm)), rm
}

func makeBuffers(t *testing.T, rm *fakeRepoManager, clientUID string, n int) []string {
	t.Helper()
	uids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		b, err := rm.buffers.Create(context.Background(), &models.Buffer{ClientUID: clientUID})
		if err != nil {
			t.Fatalf("creating buffer: %v", err)
		}
		uids = append(uids, b.UID)
	}
	return uids
}

func TestSchemeCreateAndGet(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	uids := makeBuffers(t, rm, "client-1", 2)

	scheme, err := svc.Create(ctx, "client-1", "pipeline", uids, map[string][]string{uids[0]: {uids[1]}})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if scheme.UID == "" {
		t.Fatalf("expected generated UID")
	}

	got, err := svc.Get(ctx, "client-1", scheme.UID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Name != "pipeline" {
		t.Fatalf("got name %q", got.Name)
	}

	if _, err := svc.Get(ctx, "client-2", scheme.UID); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign get: got %v", err)
	}
}

func TestSchemeCreateRejectsTransitionOutsideUsedBuffers(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	uids := makeBuffers(t, rm, "client-1", 3)

	// Destination outside the used set.
	_, err := svc.Create(ctx, "client-1", "bad", uids[:2], map[string][]string{uids[0]: {uids[2]}})
	if !errors.Is(err, common.ErrorIncorrectTransitions) {
		t.Fatalf("outside destination: got %v", err)
	}

	// Source outside the used set.
	_, err = svc.Create(ctx, "client-1", "bad", uids[:2], map[string][]string{uids[2]: {uids[0]}})
	if !errors.Is(err, common.ErrorIncorrectTransitions) {
		t.Fatalf("outside source: got %v", err)
	}
}

func TestSchemeCreateRejectsForeignBuffers(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	foreign := makeBuffers(t, rm, "client-2", 1)

	_, err := svc.Create(ctx, "client-1", "bad", foreign, nil)
	if !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign buffer: got %v", err)
	}
}

func TestSchemeUpdateRevalidates(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	uids := makeBuffers(t, rm, "client-1", 3)

	scheme, err := svc.Create(ctx, "client-1", "pipeline", uids[:2], map[string][]string{uids[0]: {uids[1]}})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.Update(ctx, "client-1", scheme.UID, "wider", uids, map[string][]string{uids[0]: {uids[1], uids[2]}})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(updated.UsedBuffers) != 3 {
		t.Fatalf("update did not widen the used set")
	}

	_, err = svc.Update(ctx, "client-1", scheme.UID, "broken", uids[:1], map[string][]string{uids[0]: {uids[1]}})
	if !errors.Is(err, common.ErrorIncorrectTransitions) {
		t.Fatalf("invalid update: got %v", err)
	}
}

func TestSchemesUsingBuffer(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	uids := makeBuffers(t, rm, "client-1", 3)

	if _, err := svc.Create(ctx, "client-1", "first", uids[:2], nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(ctx, "client-1", "second", uids[1:], nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	both, err := svc.SchemesUsingBuffer(ctx, uids[1])
	if err != nil {
		t.Fatalf("SchemesUsingBuffer error: %v", err)
	}
	if len(both) != 2 {
		t.Fatalf("buffer in both schemes matched %d", len(both))
	}

	one, err := svc.SchemesUsingBuffer(ctx, uids[0])
	if err != nil {
		t.Fatalf("SchemesUsingBuffer error: %v", err)
	}
	if len(one) != 1 || one[0].Name != "first" {
		t.Fatalf("buffer in one scheme matched %d", len(one))
	}
}

func TestSchemeDelete(t *testing.T) {
	svc, rm := newSchemeFixture(t)
	ctx := context.Background()
	uids := makeBuffers(t, rm, "client-1", 1)

	scheme, err := svc.Create(ctx, "client-1", "doomed", uids, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.Delete(ctx, "client-2", scheme.UID); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign delete: got %v", err)
	}
	if err := svc.Delete(ctx, "client-1", scheme.UID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(ctx, "client-1", scheme.UID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("deleted scheme still readable: %v", err)
	}
}
