package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, maxImages int, keepOnTrim int) *Store {
	t.Helper()
	store, e := Open(Config{
		Path:       filepath.Join(t.TempDir(), "images.db"),
		MaxImages:  maxImages,
		KeepOnTrim: keepOnTrim,
	})
	if e != nil {
		t.Fatalf("Open() error = %v", e)
	}
	t.Cleanup(store.Close)
	return store
}

func TestAddAndGetImageRoundTrip(t *testing.T) {
	store := openTestStore(t, 0, 0)

	blob := bytes.Repeat([]byte("poster pixels "), 200)
	id, e := store.AddImage(blob, "shoes.jpg")
	if e != nil {
		t.Fatalf("AddImage() error = %v", e)
	}
	if id <= 0 {
		t.Fatalf("AddImage() id = %d", id)
	}

	img, e := store.GetImage(id)
	if e != nil {
		t.Fatalf("GetImage() error = %v", e)
	}
	if img.Name != "shoes.jpg" {
		t.Fatalf("Name = %q", img.Name)
	}
	if !bytes.Equal(img.Data, blob) {
		t.Fatalf("blob did not survive the compress/decompress round trip: %d vs %d bytes", len(img.Data), len(blob))
	}
	if img.Price != "" {
		t.Fatalf("fresh record carries price %q", img.Price)
	}
	if img.Timestamp == "" {
		t.Fatal("fresh record has no timestamp")
	}
}

func TestAttachPrice(t *testing.T) {
	store := openTestStore(t, 0, 0)

	id, e := store.AddImage([]byte{1, 2, 3}, "bag.png")
	if e != nil {
		t.Fatalf("AddImage() error = %v", e)
	}
	if e := store.AttachPrice(id, "42.5"); e != nil {
		t.Fatalf("AttachPrice() error = %v", e)
	}

	img, e := store.GetImage(id)
	if e != nil {
		t.Fatalf("GetImage() error = %v", e)
	}
	if img.Price != "42.5" {
		t.Fatalf("Price = %q, want 42.5", img.Price)
	}
}

func TestListPaginationAndSearch(t *testing.T) {
	store := openTestStore(t, 0, 0)

	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("photo-%02d.jpg", i)
		if i%2 == 0 {
			name = fmt.Sprintf("banner-%02d.png", i)
		}
		if _, e := store.AddImage([]byte{byte(i)}, name); e != nil {
			t.Fatalf("AddImage(%d) error = %v", i, e)
		}
	}

	// Newest first, page size 3.
	images, total, e := store.List(1, 3, "")
	if e != nil {
		t.Fatalf("List() error = %v", e)
	}
	if total != 10 || len(images) != 3 {
		t.Fatalf("List() total = %d, page = %d items", total, len(images))
	}
	if images[0].Name != "banner-10.png" || images[2].Name != "banner-08.png" {
		t.Fatalf("page 1 = %q ... %q", images[0].Name, images[2].Name)
	}
	if len(images[0].Data) != 0 {
		t.Fatal("List() leaked image blobs")
	}

	images, _, e = store.List(2, 3, "")
	if e != nil {
		t.Fatalf("List() page 2 error = %v", e)
	}
	if images[0].Name != "photo-07.jpg" {
		t.Fatalf("page 2 starts at %q", images[0].Name)
	}

	images, total, e = store.List(1, 10, "banner")
	if e != nil {
		t.Fatalf("List() filtered error = %v", e)
	}
	if total != 5 || len(images) != 5 {
		t.Fatalf("filtered total = %d, page = %d items", total, len(images))
	}
	for _, img := range images {
		if img.Name[:6] != "banner" {
			t.Fatalf("filter let through %q", img.Name)
		}
	}
}

func TestDeleteAndAllIDs(t *testing.T) {
	store := openTestStore(t, 0, 0)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, e := store.AddImage([]byte{byte(i)}, fmt.Sprintf("img-%d", i))
		if e != nil {
			t.Fatalf("AddImage() error = %v", e)
		}
		ids = append(ids, id)
	}

	if e := store.Delete(ids[1]); e != nil {
		t.Fatalf("Delete() error = %v", e)
	}

	remaining, e := store.AllIDs()
	if e != nil {
		t.Fatalf("AllIDs() error = %v", e)
	}
	if len(remaining) != 2 || remaining[0] != ids[0] || remaining[1] != ids[2] {
		t.Fatalf("AllIDs() = %v, want [%d %d]", remaining, ids[0], ids[2])
	}

	if _, e := store.GetImage(ids[1]); e == nil {
		t.Fatal("GetImage() found a deleted record")
	}
}

func TestTrimKeepsNewestRecords(t *testing.T) {
	store := openTestStore(t, 5, 3)

	for i := 1; i <= 6; i++ {
		if _, e := store.AddImage([]byte{byte(i)}, fmt.Sprintf("img-%d", i)); e != nil {
			t.Fatalf("AddImage(%d) error = %v", i, e)
		}
	}

	ids, e := store.AllIDs()
	if e != nil {
		t.Fatalf("AllIDs() error = %v", e)
	}
	if len(ids) != 3 {
		t.Fatalf("after trim: %d records, want 3", len(ids))
	}

	// The survivors are the newest uploads.
	first, e := store.GetImage(ids[0])
	if e != nil {
		t.Fatalf("GetImage() error = %v", e)
	}
	if first.Name != "img-4" {
		t.Fatalf("oldest survivor = %q, want img-4", first.Name)
	}
}
