package model

// ListingRecord is one search result entry.
// Fields the page did not provide are left empty and omitted from JSON;
// absence is never an error.
//
// Design decision: ContactInfo is a pointer because "not yet augmented"
// and "augmented, nothing found" are different states. The search pipeline
// creates every record with a nil ContactInfo and detail augmentation
// either sets it or leaves it nil on failure.
type ListingRecord struct {
	// Title is the result card headline.
	Title string `json:"title,omitempty"`

	// URL is the proxied, navigable detail URL.
	URL string `json:"url,omitempty"`

	// Location is the city or suburb shown on the card.
	Location string `json:"location,omitempty"`

	// Description is the card's snippet text.
	Description string `json:"description,omitempty"`

	// Age is the advertiser age as shown on the card.
	Age string `json:"age,omitempty"`

	// Category is the listing category, when the card exposes one.
	Category string `json:"category,omitempty"`

	// ContactInfo is filled in by detail augmentation.
	ContactInfo *string `json:"contact_info"`

	// Price is copied from the detail page when present.
	Price string `json:"price,omitempty"`

	// DatePosted is copied from the detail page when present.
	DatePosted string `json:"date_posted,omitempty"`

	// Images are copied from the detail page when present.
	Images []string `json:"images,omitempty"`

	// AdID is the numeric listing identifier from the detail page.
	AdID string `json:"ad_id,omitempty"`

	// Error is set instead of partial data when the page was blocked.
	Error string `json:"error,omitempty"`

	// DebugURL is the bare search URL of page 1.
	DebugURL string `json:"_debug_url,omitempty"`

	// DebugProxiedURL is the proxied search URL of page 1.
	DebugProxiedURL string `json:"_debug_proxied_url,omitempty"`
}

// HasError reports whether the record carries an error instead of data.
func (r *ListingRecord) HasError() bool {
	return r.Error != ""
}

// IsDebugOnly reports whether the record only carries diagnostics.
// This is the standalone record appended when a search found nothing.
func (r *ListingRecord) IsDebugOnly() bool {
	return r.URL == "" && r.Title == "" && r.Error == "" &&
		(r.DebugURL != "" || r.DebugProxiedURL != "")
}

// ApplyDetail copies detail-only fields onto the record.
// ContactInfo is taken as-is (possibly empty); other fields are copied
// only when the detail page provided them.
func (r *ListingRecord) ApplyDetail(d DetailRecord) {
	contact := d.ContactInfo
	r.ContactInfo = &contact

	if d.Price != "" {
		r.Price = d.Price
	}
	if d.DatePosted != "" {
		r.DatePosted = d.DatePosted
	}
	if len(d.Images) > 0 {
		r.Images = d.Images
	}
	if d.AdID != "" {
		r.AdID = d.AdID
	}
}

// DetailRecord is the result of extracting a single detail page.
// Missing fields are empty strings; Error is set when extraction failed
// after all retry attempts or the page was blocked.
type DetailRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Location    string   `json:"location"`
	DatePosted  string   `json:"date_posted"`
	Images      []string `json:"images"`
	ContactInfo string   `json:"contact_info"`
	Age         string   `json:"age"`
	AdID        string   `json:"ad_id"`

	// URL is the proxied URL that was navigated.
	URL string `json:"url,omitempty"`

	// Error describes why the fetch did not produce data.
	Error string `json:"error,omitempty"`
}

// HasError reports whether the detail fetch failed.
func (d *DetailRecord) HasError() bool {
	return d.Error != ""
}
