package product

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"
)

// DefaultExtension is used for images whose filename carries no extension
const DefaultExtension = ".jpg"

// Image references one product image as listed by the API
type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Extension returns the file extension inferred from the image filename
func (i Image) Extension() string {
	ext := path.Ext(strings.TrimSpace(i.Filename))
	if ext == "" || ext == "." {
		return DefaultExtension
	}
	return ext
}

// Product is a single product object; only its images are used
type Product struct {
	Code   string  `json:"code,omitempty"`
	Images []Image `json:"images"`
}

// Response is the JSON body returned by a product endpoint
type Response struct {
	Count    *int            `json:"count,omitempty"`
	Products json.RawMessage `json:"products"`
}

// List decodes the products array. A missing, null or malformed array
// yields an empty list, as does an explicit count of zero.
func (r *Response) List() []Product {
	if r.Count != nil && *r.Count == 0 {
		return nil
	}
	if len(r.Products) == 0 {
		return nil
	}

	var products []Product
	if err := json.Unmarshal(r.Products, &products); err != nil {
		return nil
	}
	return products
}

// Endpoint is a product API endpoint with its auth headers.
// Nil Headers means the endpoint is disabled.
type Endpoint struct {
	Name    string
	URL     string
	Headers http.Header
}

// Enabled reports whether the endpoint has credentials
func (e Endpoint) Enabled() bool {
	return e.Headers != nil
}

// Result is a successful lookup
type Result struct {
	Product  Product
	Endpoint Endpoint
	// Attempts counts requests made to the winning endpoint
	Attempts int
}
