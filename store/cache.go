package store

// CachedProduct mirrors a remote catalog product.
type CachedProduct struct {
	StoreID          string  `json:"store_id"`
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	CategoryID       string  `json:"category_id"`
	Price            float64 `json:"price"`
	SellingQuantity  float64 `json:"selling_quantity"`
	InventoryStockID string  `json:"inventory_stock_id"`
	SKU              string  `json:"sku"`
	Active           bool    `json:"active"`
	CacheVersion     int64   `json:"cache_version"`
	CachedAt         string  `json:"cached_at"`
}

// CachedCategory mirrors a remote catalog category.
type CachedCategory struct {
	StoreID  string `json:"store_id"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	CachedAt string `json:"cached_at"`
}

// CachedRecipe maps a product to its ingredient requirements.
type CachedRecipe struct {
	StoreID   string             `json:"store_id"`
	ID        string             `json:"id"`
	ProductID string             `json:"product_id"`
	Items     []CachedRecipeItem `json:"items"`
	CachedAt  string             `json:"cached_at"`
}

// CachedRecipeItem is one ingredient requirement of a recipe.
type CachedRecipeItem struct {
	IngredientStockID string  `json:"ingredient_stock_id"`
	QuantityRequired  float64 `json:"quantity_required"`
}

// PutProducts bulk-replaces cached products. Overwrite semantics: existing
// rows with the same key are replaced, rows for other keys are untouched.
func (db *DB) PutProducts(storeID string, products []CachedProduct, cacheVersion int64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range products {
		if _, err := tx.Exec(`INSERT INTO cached_products
			(store_id, id, name, category_id, price, selling_quantity, inventory_stock_id, sku, active, cache_version, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now','localtime'))
			ON CONFLICT(store_id, id) DO UPDATE SET
				name = excluded.name, category_id = excluded.category_id,
				price = excluded.price, selling_quantity = excluded.selling_quantity,
				inventory_stock_id = excluded.inventory_stock_id, sku = excluded.sku,
				active = excluded.active, cache_version = excluded.cache_version,
				cached_at = excluded.cached_at`,
			storeID, p.ID, p.Name, p.CategoryID, p.Price, p.SellingQuantity,
			p.InventoryStockID, p.SKU, p.Active, cacheVersion); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) GetProduct(storeID, productID string) (*CachedProduct, error) {
	p := &CachedProduct{}
	err := db.QueryRow(`SELECT store_id, id, name, category_id, price, selling_quantity,
			inventory_stock_id, sku, active, cache_version, cached_at
		FROM cached_products WHERE store_id = ? AND id = ?`, storeID, productID).
		Scan(&p.StoreID, &p.ID, &p.Name, &p.CategoryID, &p.Price, &p.SellingQuantity,
			&p.InventoryStockID, &p.SKU, &p.Active, &p.CacheVersion, &p.CachedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) ListProducts(storeID string) ([]CachedProduct, error) {
	rows, err := db.Query(`SELECT store_id, id, name, category_id, price, selling_quantity,
			inventory_stock_id, sku, active, cache_version, cached_at
		FROM cached_products WHERE store_id = ? ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []CachedProduct
	for rows.Next() {
		var p CachedProduct
		if err := rows.Scan(&p.StoreID, &p.ID, &p.Name, &p.CategoryID, &p.Price, &p.SellingQuantity,
			&p.InventoryStockID, &p.SKU, &p.Active, &p.CacheVersion, &p.CachedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// PutCategories bulk-replaces cached categories.
func (db *DB) PutCategories(storeID string, categories []CachedCategory) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, c := range categories {
		if _, err := tx.Exec(`INSERT INTO cached_categories (store_id, id, name, cached_at)
			VALUES (?, ?, ?, datetime('now','localtime'))
			ON CONFLICT(store_id, id) DO UPDATE SET name = excluded.name, cached_at = excluded.cached_at`,
			storeID, c.ID, c.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) ListCategories(storeID string) ([]CachedCategory, error) {
	rows, err := db.Query(`SELECT store_id, id, name, cached_at FROM cached_categories WHERE store_id = ? ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []CachedCategory
	for rows.Next() {
		var c CachedCategory
		if err := rows.Scan(&c.StoreID, &c.ID, &c.Name, &c.CachedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// PutRecipes bulk-replaces cached recipes and their ingredient rows.
func (db *DB) PutRecipes(storeID string, recipes []CachedRecipe) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range recipes {
		if _, err := tx.Exec(`INSERT INTO cached_recipes (store_id, id, product_id, cached_at)
			VALUES (?, ?, ?, datetime('now','localtime'))
			ON CONFLICT(store_id, id) DO UPDATE SET product_id = excluded.product_id, cached_at = excluded.cached_at`,
			storeID, r.ID, r.ProductID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM cached_recipe_items WHERE store_id = ? AND recipe_id = ?`, storeID, r.ID); err != nil {
			return err
		}
		for _, it := range r.Items {
			if _, err := tx.Exec(`INSERT INTO cached_recipe_items (store_id, recipe_id, ingredient_stock_id, quantity_required)
				VALUES (?, ?, ?, ?)`, storeID, r.ID, it.IngredientStockID, it.QuantityRequired); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// GetRecipeForProduct returns the recipe for a product, or nil if the product
// has none.
func (db *DB) GetRecipeForProduct(storeID, productID string) (*CachedRecipe, error) {
	r := &CachedRecipe{}
	err := db.QueryRow(`SELECT store_id, id, product_id, cached_at FROM cached_recipes
		WHERE store_id = ? AND product_id = ?`, storeID, productID).
		Scan(&r.StoreID, &r.ID, &r.ProductID, &r.CachedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := db.Query(`SELECT ingredient_stock_id, quantity_required FROM cached_recipe_items
		WHERE store_id = ? AND recipe_id = ?`, storeID, r.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it CachedRecipeItem
		if err := rows.Scan(&it.IngredientStockID, &it.QuantityRequired); err != nil {
			return nil, err
		}
		r.Items = append(r.Items, it)
	}
	return r, rows.Err()
}

// ClearReferenceData drops all cached catalog rows for a store. The inventory
// snapshot goes with them; callers re-baseline by re-running the cache warm.
func (db *DB) ClearReferenceData(storeID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"cached_products", "cached_categories", "cached_inventory_stock", "cached_recipes", "cached_recipe_items"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE store_id = ?`, storeID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LastCacheTime returns the most recent cached_at across products for a store,
// or zero time when nothing is cached.
func (db *DB) LastCacheTime(storeID string) (string, error) {
	var ts string
	err := db.QueryRow(`SELECT COALESCE(MAX(cached_at), '') FROM cached_products WHERE store_id = ?`, storeID).Scan(&ts)
	return ts, err
}
