package linker_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/starford/echolog/internal/linker"
	"github.com/starford/echolog/internal/models"
	"github.com/starford/echolog/internal/testutil"
)

func TestLinker_SQLiteStore(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	put := func(id string, offset int, emb ...float32) models.Memo {
		m := models.Memo{
			ID: id, OwnerID: "u", Transcription: id, Embedding: emb,
			CreatedAt: base.Add(time.Duration(offset) * time.Second),
			UpdatedAt: base,
		}
		if err := db.InsertMemo(ctx, &m); err != nil {
			t.Fatalf("InsertMemo(%s): %v", id, err)
		}
		return m
	}
	a := put("A", 0, 1, 0)
	put("B", 1, 1, 0.001)
	put("C", 2, 0, 1)

	l := linker.New(db, linker.DefaultParams(), testutil.Logger())
	if _, err := l.Relink(ctx, a); err != nil {
		t.Fatalf("Relink: %v", err)
	}

	got, err := db.FetchByIDs(ctx, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("FetchByIDs: %v", err)
	}
	if !reflect.DeepEqual(got[0].RelatedIDs, []string{"B"}) {
		t.Errorf("A.related = %v, want [B]", got[0].RelatedIDs)
	}
	if !reflect.DeepEqual(got[1].RelatedIDs, []string{"A"}) {
		t.Errorf("B.related = %v, want [A]", got[1].RelatedIDs)
	}
	if len(got[2].RelatedIDs) != 0 {
		t.Errorf("C.related = %v, want empty", got[2].RelatedIDs)
	}

	if err := l.Cleanup(ctx, "A"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	got, _ = db.FetchByIDs(ctx, []string{"B"})
	if len(got[0].RelatedIDs) != 0 {
		t.Errorf("B.related after cleanup = %v", got[0].RelatedIDs)
	}
}
