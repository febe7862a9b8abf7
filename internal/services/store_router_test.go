package services

import (
	"context"
	"testing"
)

type fakeDefaultsStore struct {
	defaults map[string]string
	upserts  []string
	err      error
}

func (f *fakeDefaultsStore) Defaults(ctx context.Context, ownerID int) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.defaults, nil
}

func (f *fakeDefaultsStore) Upsert(ctx context.Context, ownerID int, normalizedName, store string) error {
	if f.err != nil {
		return f.err
	}
	if f.defaults == nil {
		f.defaults = make(map[string]string)
	}
	f.defaults[normalizedName] = store
	f.upserts = append(f.upserts, normalizedName+"="+store)
	return nil
}

func TestStoreRouterPriority(t *testing.T) {
	r := NewStoreRouter(&fakeDefaultsStore{})
	defaults := map[string]string{"soy sauce": "Asian Market"}

	pref := "Butcher"
	if got := r.Route("soy sauce", &pref, defaults); got != "Butcher" {
		t.Errorf("recipe preference ignored: got %q", got)
	}

	if got := r.Route("soy sauce", nil, defaults); got != "Asian Market" {
		t.Errorf("learned default ignored: got %q", got)
	}

	empty := ""
	if got := r.Route("soy sauce", &empty, defaults); got != "Asian Market" {
		t.Errorf("blank preference should fall through: got %q", got)
	}

	if got := r.Route("flour", nil, defaults); got != DefaultStoreLabel {
		t.Errorf("unrouted key = %q, want %q", got, DefaultStoreLabel)
	}

	if got := r.Route("flour", nil, nil); got != DefaultStoreLabel {
		t.Errorf("nil defaults = %q, want %q", got, DefaultStoreLabel)
	}
}

func TestStoreRouterObserve(t *testing.T) {
	store := &fakeDefaultsStore{}
	r := NewStoreRouter(store)

	if err := r.Observe(context.Background(), 7, "soy sauce", "Asian Market"); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if store.defaults["soy sauce"] != "Asian Market" {
		t.Errorf("override not persisted: %v", store.defaults)
	}

	// Later observations replace earlier ones
	if err := r.Observe(context.Background(), 7, "soy sauce", "Costco"); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if store.defaults["soy sauce"] != "Costco" {
		t.Errorf("last write should win: %v", store.defaults)
	}
}
