package models

import "strings"

// Tag is a label attached to a report, e.g. {"text": "ELECTRUM", "tag_type": "actor"}
type Tag struct {
	Text    string `json:"text"`
	TagType string `json:"tag_type"`
}

// Flatten renders the tag as "text (type)", or just "text" when untyped
func (t Tag) Flatten() string {
	if t.TagType == "" {
		return t.Text
	}
	return t.Text + " (" + t.TagType + ")"
}

// Report represents a portal API intel report ("product")
type Report struct {
	Serial           string `json:"serial"`
	Type             string `json:"type"`
	TLPLevel         string `json:"tlp_level"`
	Title            string `json:"title"`
	ExecutiveSummary string `json:"executive_summary"`
	UpdatedAt        string `json:"updated_at"`
	ReleaseDate      string `json:"release_date"`
	ThreatLevel      int    `json:"threat_level"`
	IOCCount         int    `json:"ioc_count"`
	ReportLink       string `json:"report_link,omitempty"`
	Tags             []Tag  `json:"tags"`
}

// HasAsset reports whether the report carries a downloadable document
func (r *Report) HasAsset() bool {
	return strings.TrimSpace(r.ReportLink) != ""
}

// ReportPage is one page of the products collection
type ReportPage struct {
	TotalPages int      `json:"total_pages"`
	Page       int      `json:"page,omitempty"`
	PageSize   int      `json:"page_size,omitempty"`
	Total      int      `json:"total,omitempty"`
	Products   []Report `json:"products"`
}

// ReportRecord is the flattened structure for database storage
type ReportRecord struct {
	Serial           string
	Type             string
	TLPLevel         string
	UpdatedAt        string
	ReleaseDate      string
	ThreatLevel      int
	IOCCount         int
	Title            string
	ExecutiveSummary string
	Tags             string
}

// FlattenTags joins all tags into a single column value
func FlattenTags(tags []Tag) string {
	flat := make([]string, 0, len(tags))
	for _, t := range tags {
		flat = append(flat, t.Flatten())
	}
	return strings.Join(flat, TagSeparator)
}

// ToRecord converts a Report to a ReportRecord for database storage
func (r *Report) ToRecord() ReportRecord {
	return ReportRecord{
		Serial:           r.Serial,
		Type:             r.Type,
		TLPLevel:         r.TLPLevel,
		UpdatedAt:        r.UpdatedAt,
		ReleaseDate:      r.ReleaseDate,
		ThreatLevel:      r.ThreatLevel,
		IOCCount:         r.IOCCount,
		Title:            r.Title,
		ExecutiveSummary: r.ExecutiveSummary,
		Tags:             FlattenTags(r.Tags),
	}
}
