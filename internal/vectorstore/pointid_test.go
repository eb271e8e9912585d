package vectorstore

import "testing"

func TestPointIDIsDeterministic(t *testing.T) {
	a := PointID("func:main.go:Foo", "repo-1")
	b := PointID("func:main.go:Foo", "repo-1")
	if a != b {
		t.Fatalf("PointID not deterministic: %d != %d", a, b)
	}
}

func TestPointIDDiffersByRepo(t *testing.T) {
	a := PointID("func:main.go:Foo", "repo-1")
	b := PointID("func:main.go:Foo", "repo-2")
	if a == b {
		t.Fatalf("expected different repos to produce different point IDs, got %d for both", a)
	}
}

func TestPointIDDiffersByEntity(t *testing.T) {
	a := PointID("func:main.go:Foo", "repo-1")
	b := PointID("func:main.go:Bar", "repo-1")
	if a == b {
		t.Fatalf("expected different entities to produce different point IDs, got %d for both", a)
	}
}
