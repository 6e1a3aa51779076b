package storage

import "testing"

func openTestDB(t *testing.T) *LevelDB {
	t.Helper()
	db, err := OpenLevelDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLevelDBPutGetDelete(t *testing.T) {
	db := openTestDB(t)

	if _, ok, err := db.Get([]byte("missing")); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get([]byte("k"))
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("got %q ok=%v err=%v", v, ok, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := db.Get([]byte("k")); err != nil || ok {
		t.Fatalf("expected key gone, got ok=%v err=%v", ok, err)
	}
}

func TestLevelDBBatch(t *testing.T) {
	db := openTestDB(t)

	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	if b.Len() != 2 {
		t.Fatalf("expected 2 queued ops, got %d", b.Len())
	}
	if err := b.Write(); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := db.Get([]byte("a")); !ok || string(v) != "1" {
		t.Fatalf("batch write for 'a' missing: %q", v)
	}
	if b.Len() != 0 {
		t.Fatal("expected batch reset after write")
	}
}

func TestLevelDBIteratorTrimsPrefixAndOrders(t *testing.T) {
	db := openTestDB(t)

	db.Put([]byte("p1"), []byte("one"))
	db.Put([]byte("p2"), []byte("two"))
	db.Put([]byte("q1"), []byte("other"))

	it := db.Iterator([]byte("p"), false)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "1" || keys[1] != "2" {
		t.Fatalf("expected trimmed keys [1 2], got %v", keys)
	}
}
