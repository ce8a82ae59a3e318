package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tilledge/store"
)

// Remote is the pull side of the sync target: the four reference collections
// the cache warms from at start of day.
type Remote interface {
	FetchProducts(ctx context.Context, storeID string) ([]store.CachedProduct, error)
	FetchCategories(ctx context.Context, storeID string) ([]store.CachedCategory, error)
	FetchInventoryStock(ctx context.Context, storeID string) ([]store.CachedInventoryStock, error)
	FetchRecipes(ctx context.Context, storeID string) ([]store.CachedRecipe, error)
}

// HTTPRemote pulls reference data from the system of record over HTTPS.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRemote creates a remote client for the given API base URL.
func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPRemote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPRemote) FetchProducts(ctx context.Context, storeID string) ([]store.CachedProduct, error) {
	var out []store.CachedProduct
	err := r.getJSON(ctx, fmt.Sprintf("%s/stores/%s/products", r.baseURL, storeID), &out)
	return out, err
}

func (r *HTTPRemote) FetchCategories(ctx context.Context, storeID string) ([]store.CachedCategory, error) {
	var out []store.CachedCategory
	err := r.getJSON(ctx, fmt.Sprintf("%s/stores/%s/categories", r.baseURL, storeID), &out)
	return out, err
}

func (r *HTTPRemote) FetchInventoryStock(ctx context.Context, storeID string) ([]store.CachedInventoryStock, error) {
	var out []store.CachedInventoryStock
	err := r.getJSON(ctx, fmt.Sprintf("%s/stores/%s/inventory", r.baseURL, storeID), &out)
	return out, err
}

func (r *HTTPRemote) FetchRecipes(ctx context.Context, storeID string) ([]store.CachedRecipe, error) {
	var out []store.CachedRecipe
	err := r.getJSON(ctx, fmt.Sprintf("%s/stores/%s/recipes", r.baseURL, storeID), &out)
	return out, err
}

func (r *HTTPRemote) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
