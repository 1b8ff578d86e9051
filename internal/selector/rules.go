package selector

import "regexp"

// Container selectors.
const (
	// ListingContainer matches one search result card.
	ListingContainer = "article.posting_listing"

	// MapContainers matches listing elements across the page layouts seen
	// while mapping (result cards, legacy lists, grid tiles).
	MapContainers = "article.posting_listing, li.listing, div.listing"

	// TaxonomyLinks matches category, personals, and dating links.
	TaxonomyLinks = `a[href*="/g/"], a[href*="/personals/"], a[href*="/dating/"]`

	// PaginationLinks matches "next page" links.
	PaginationLinks = `a[rel="next"], a.js-pagination-next`
)

// Field names shared by listing and detail rule sets.
const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldLocation    = "location"
	FieldDescription = "description"
	FieldAge         = "age"
	FieldCategory    = "category"
	FieldPrice       = "price"
	FieldDatePosted  = "date_posted"
	FieldImages      = "images"
	FieldContactInfo = "contact_info"
	FieldAdID        = "ad_id"
)

var (
	twoDigitsRegex = regexp.MustCompile(`(\d{2})`)
	ageYearsRegex  = regexp.MustCompile(`(?i)(\d{2})\s*years`)
	phoneRegex     = regexp.MustCompile(`(\+?\d[\d\s\-]{7,}\d)`)
	emailRegex     = regexp.MustCompile(`([\w.\-]+@[\w.\-]+)`)
	adIDRegex      = regexp.MustCompile(`ID_(\d+)`)
)

// ListingRules returns the rule set for a search result card, scoped to
// one ListingContainer element.
func ListingRules() RuleSet {
	return RuleSet{
		{
			Field: FieldURL,
			Strategies: []Strategy{
				CSSAttr("a.posting_listing__title.js-result_title.js-ad_link", "href"),
				CSSAttr("a.posting_listing__title", "href"),
			},
		},
		{
			Field: FieldTitle,
			Strategies: []Strategy{
				CSS("a.posting_listing__title.js-result_title.js-ad_link div.h3.js-result_title"),
				CSS("div.h3.js-result_title"),
			},
		},
		{
			Field: FieldLocation,
			Strategies: []Strategy{
				CSS("span.js-result_location.posting_listing__city"),
				CSS("span.js-result_location"),
				CSS("span.posting_listing__city"),
			},
		},
		{
			Field: FieldDescription,
			Strategies: []Strategy{
				CSS("div.posting_listing__description.js-description_snippet"),
				CSS(".js-description_snippet"),
				CSS("div.posting_listing__description"),
			},
		},
		{
			Field: FieldAge,
			Strategies: []Strategy{
				CSS("span.posting_listing__age"),
			},
		},
		{
			Field: FieldCategory,
			Strategies: []Strategy{
				CSS("span.posting_listing__category a"),
			},
		},
	}
}

// DetailRules returns the rule set for a listing detail page, resolved
// over the whole document.
func DetailRules() RuleSet {
	return RuleSet{
		{
			Field: FieldTitle,
			Strategies: []Strategy{
				CSS("h1.app_title"),
				CSS("h1"),
				CSS(".vap_header__title"),
			},
			Meta: []string{"dc.title", "og:title"},
		},
		{
			Field: FieldDescription,
			Strategies: []Strategy{
				CSS(".vap__description"),
				CSS(".vap_user_content__description"),
				CSS(".js-description_snippet"),
				CSS(".posting_listing__description"),
				CSS(`div[class*="description"]`),
				CSS(`div[class*="content"]`),
			},
			Meta: []string{"description", "dc.description", "og:description"},
		},
		{
			Field: FieldPrice,
			Strategies: []Strategy{
				CSS("div.price"),
				CSS("span.price"),
				CSS(`div[class*="price"]`),
				CSS(`span[class*="price"]`),
			},
		},
		{
			Field: FieldLocation,
			Strategies: []Strategy{
				CSS(`span[itemprop="addressLocality"]`),
				CSS(".vap_posting_details__address"),
				CSS(".js-result_location"),
				CSS(`div[class*="location"]`),
				CSS(`span[class*="location"]`),
			},
			Meta: []string{"geo.placename"},
		},
		{
			Field: FieldDatePosted,
			Strategies: []Strategy{
				CSSAttr(`meta[name="dcterms.date"]`, "content"),
				CSS(".vap_user_content__date"),
				CSSAttr("time[datetime]", "datetime"),
			},
		},
		{
			Field: FieldImages,
			Strategies: []Strategy{
				CSSAttr(".user_images__img", "src"),
				CSSAttr(`img[src*="locanto"]`, "src"),
				CSSAttr("img.posting_listing__image", "src"),
			},
			Meta:  []string{"og:image"},
			Multi: true,
		},
		{
			Field: FieldContactInfo,
			Strategies: []Strategy{
				CSS(".contact_buttons__button--call"),
				CSS(`div[class*="contact"]`),
				CSS(`div[class*="phone"]`),
				CSS(`a[href^="tel:"]`),
			},
			Patterns: []TextPattern{
				{Regex: phoneRegex, Sources: []string{FieldDescription, SourceText}},
				{Regex: emailRegex, Sources: []string{FieldDescription, SourceText}},
			},
		},
		{
			Field: FieldAge,
			Strategies: []Strategy{
				CSS(".header-age"),
				CSS(".vap_user_content__feature_value"),
				CSS("span.posting_listing__age"),
				CSS(`span[class*="age"]`),
			},
			Normalize: twoDigitsRegex,
			Patterns: []TextPattern{
				{Regex: ageYearsRegex, Sources: []string{FieldDescription}},
			},
		},
		{
			Field: FieldAdID,
			Patterns: []TextPattern{
				{Regex: adIDRegex, Sources: []string{SourceURL, SourceHTML}},
			},
		},
	}
}
