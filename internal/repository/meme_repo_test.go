package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/dirt2meme/internal/config"
	"github.com/timmy/dirt2meme/internal/domain"
)

func newTestRepo(t *testing.T) *MemeRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "memes.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewMemeRepository(db)
}

func seed(t *testing.T, repo *MemeRepository, n int) {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		m := &domain.Meme{
			ID:           fmt.Sprintf("id%02d", i),
			StorageKey:   fmt.Sprintf("id%02d.jpg", i),
			Caption:      "This is fine.",
			FaceDetected: i%2 == 0,
			Width:        100,
			Height:       80,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
}

func TestGetByID(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, 1)

	got, err := repo.GetByID(context.Background(), "id00")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.StorageKey != "id00.jpg" || !got.FaceDetected {
		t.Errorf("unexpected record %+v", got)
	}

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, 1)
	err := repo.Create(context.Background(), &domain.Meme{ID: "id00", StorageKey: "other.jpg", Caption: "x"})
	if err == nil {
		t.Fatal("duplicate id should fail")
	}
}

func TestListAndCount(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo, 5)
	ctx := context.Background()
	faces := true

	tests := []struct {
		name      string
		filter    domain.MemeFilter
		limit     int
		offset    int
		wantIDs   []string
		wantCount int64
	}{
		{name: "all newest first", limit: 10, wantIDs: []string{"id04", "id03", "id02", "id01", "id00"}, wantCount: 5},
		{name: "paged", limit: 2, offset: 1, wantIDs: []string{"id03", "id02"}, wantCount: 5},
		{name: "faces only", filter: domain.MemeFilter{FaceDetected: &faces}, limit: 10, wantIDs: []string{"id04", "id02", "id00"}, wantCount: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			memes, err := repo.List(ctx, tc.filter, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(memes) != len(tc.wantIDs) {
				t.Fatalf("got %d memes, want %d", len(memes), len(tc.wantIDs))
			}
			for i, m := range memes {
				if m.ID != tc.wantIDs[i] {
					t.Errorf("memes[%d] = %s, want %s", i, m.ID, tc.wantIDs[i])
				}
			}

			count, err := repo.Count(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if count != tc.wantCount {
				t.Errorf("count = %d, want %d", count, tc.wantCount)
			}
		})
	}
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	if _, err := InitDB(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
