package shopify

// Product is the raw product payload as returned by the admin API. Tags come
// back as a single comma-separated string and prices as decimal strings; the
// sync engine normalizes both once, at the boundary.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Tags        string    `json:"tags"`
	Status      string    `json:"status"`
	Variants    []Variant `json:"variants"`
	Images      []Image   `json:"images"`
}

// Variant is the raw variant payload.
type Variant struct {
	ID                int64   `json:"id"`
	SKU               string  `json:"sku"`
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compare_at_price"`
	InventoryQuantity int     `json:"inventory_quantity"`
}

// Image is the raw image payload.
type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Page is one page of the paginated product listing. An empty NextCursor
// means the listing is exhausted.
type Page struct {
	Products   []Product
	NextCursor string
}
