package extractor

// ListSelectors locates summary data on a search results page. Selector
// values live here so site markup changes stay contained in one place.
type ListSelectors struct {
	// Item matches each result card, Link the detail anchor inside it.
	Item string
	Link string
	// PublishedAt/UpdatedAt match summary timestamps when the list page
	// carries them.
	PublishedAt string
	UpdatedAt   string
	// IDAttrs names data-* attributes on the item that carry site IDs.
	IDAttrs []string
	// NextPage matches the pagination "next" link; empty means rely on
	// an explicit page bound.
	NextPage string
}

// DetailSelectors locates the fields of a detail page.
type DetailSelectors struct {
	Title          string
	Employer       string
	Locations      string
	EmploymentType string
	Extent         string
	SalaryText     string
	// JobCodeBlocks matches every text block that may carry job codes;
	// each matched element becomes one parse block.
	JobCodeBlocks string
	PublishedAt   string
	UpdatedAt     string
	ApplyDeadline string
}

// DefaultListSelectors matches the arbeidsplassen search results markup.
func DefaultListSelectors() ListSelectors {
	return ListSelectors{
		Item:        "article.result-item",
		Link:        "a.result-link",
		PublishedAt: "time.published",
		UpdatedAt:   "time.updated",
		IDAttrs:     []string{"data-id", "data-listing-id"},
		NextPage:    "a[rel=next]",
	}
}

// DefaultDetailSelectors matches the arbeidsplassen detail page markup.
func DefaultDetailSelectors() DetailSelectors {
	return DetailSelectors{
		Title:          "h1.job-title",
		Employer:       ".employer-name",
		Locations:      ".job-locations",
		EmploymentType: ".employment-type",
		Extent:         ".employment-extent",
		SalaryText:     ".salary",
		JobCodeBlocks:  ".job-codes, .job-description p, .job-description li",
		PublishedAt:    "time.published",
		UpdatedAt:      "time.updated",
		ApplyDeadline:  "time.deadline",
	}
}
