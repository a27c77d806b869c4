package region

import "testing"

func TestResolve_KnownID(t *testing.T) {
	dir := Defaults("global")
	r := dir.Resolve("cn")
	if r.ID != "cn" {
		t.Fatalf("resolved wrong region: got=%q want=%q", r.ID, "cn")
	}
	if r.APIBaseURL == "" || r.HostHeader == "" {
		t.Fatalf("region %q missing endpoint data: %+v", r.ID, r)
	}
}

func TestResolve_UnknownFallsBackToDefault(t *testing.T) {
	dir := Defaults("global")
	r := dir.Resolve("mars")
	if r.ID != "global" {
		t.Fatalf("unknown selector should fall back: got=%q want=%q", r.ID, "global")
	}
}

func TestResolve_EmptyFallsBackToDefault(t *testing.T) {
	dir := Defaults("cn")
	r := dir.Resolve("")
	if r.ID != "cn" {
		t.Fatalf("empty selector should fall back: got=%q want=%q", r.ID, "cn")
	}
}

func TestNewDirectory_BadDefaultFallsBackToFirst(t *testing.T) {
	dir := NewDirectory("nope",
		Region{ID: "a", APIBaseURL: "https://a.example.com"},
		Region{ID: "b", APIBaseURL: "https://b.example.com"},
	)
	if dir.DefaultID() != "a" {
		t.Fatalf("default not repaired: got=%q want=%q", dir.DefaultID(), "a")
	}
}

func TestList_SortedByID(t *testing.T) {
	dir := Defaults("global")
	list := dir.List()
	if len(list) != 2 {
		t.Fatalf("unexpected region count: got=%d want=2", len(list))
	}
	if list[0].ID != "cn" || list[1].ID != "global" {
		t.Fatalf("list not sorted by id: %v, %v", list[0].ID, list[1].ID)
	}
}
