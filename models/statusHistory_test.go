package models

import (
	"testing"
	"time"
)

func TestCurrentStatusOf_LatestDateWins(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	histories := []StatusHistory{
		{ID: 1, Date: base, StatusId: 1},
		{ID: 2, Date: base.Add(48 * time.Hour), StatusId: 2},
		{ID: 3, Date: base.Add(24 * time.Hour), StatusId: 3},
	}

	current := CurrentStatusOf(histories)
	if current == nil || current.ID != 2 {
		t.Fatalf("expected entry 2, got %+v", current)
	}
}

func TestCurrentStatusOf_TieBrokenByHigherId(t *testing.T) {
	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	histories := []StatusHistory{
		{ID: 9, Date: date, StatusId: 1},
		{ID: 4, Date: date, StatusId: 2},
		{ID: 7, Date: date, StatusId: 3},
	}

	current := CurrentStatusOf(histories)
	if current == nil || current.ID != 9 {
		t.Fatalf("expected entry 9 on tie, got %+v", current)
	}
}

func TestCurrentStatusOf_Empty(t *testing.T) {
	if current := CurrentStatusOf(nil); current != nil {
		t.Fatalf("expected nil for no histories, got %+v", current)
	}
}

func TestStatusHistory_ImageListRoundTrip(t *testing.T) {
	var h StatusHistory
	h.SetImages([]string{"a.jpg", "b.jpg"})
	images := h.ImageList()
	if len(images) != 2 || images[0] != "a.jpg" || images[1] != "b.jpg" {
		t.Fatalf("image list mismatch: %v", images)
	}

	h.SetImages(nil)
	if h.ImagesJSON != nil {
		t.Fatalf("expected nil json for empty list, got %s", h.ImagesJSON)
	}
	if h.ImageList() != nil {
		t.Fatal("expected nil image list")
	}
}

func TestGeoPoint_Coordinates(t *testing.T) {
	p := NewGeoPoint(-18.8792, 47.5079)
	if p.Latitude() != -18.8792 {
		t.Fatalf("latitude = %v", p.Latitude())
	}
	if p.Longitude() != 47.5079 {
		t.Fatalf("longitude = %v", p.Longitude())
	}

	if _, err := p.Value(); err != nil {
		t.Fatalf("Value: %v", err)
	}
}
