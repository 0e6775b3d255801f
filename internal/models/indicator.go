package models

import "strings"

// TagSeparator joins multi-valued fields into a single column for storage
const TagSeparator = ";"

// Indicator represents a portal API indicator record
type Indicator struct {
	ID                  int64    `json:"id"`
	Value               string   `json:"value"`
	IndicatorType       string   `json:"indicator_type"`
	Comment             string   `json:"comment"`
	FirstSeen           string   `json:"first_seen"`
	LastSeen            string   `json:"last_seen"`
	UpdatedAt           string   `json:"updated_at"`
	Confidence          string   `json:"confidence"`
	KillChain           string   `json:"kill_chain"`
	ActivityGroups      []string `json:"activity_groups"`
	AttackTechniques    []string `json:"attack_techniques"`
	PreAttackTechniques []string `json:"pre_attack_techniques"`
}

// IndicatorPage is one page of the indicators collection
type IndicatorPage struct {
	TotalPages int         `json:"total_pages"`
	Page       int         `json:"page,omitempty"`
	PageSize   int         `json:"page_size,omitempty"`
	Total      int         `json:"total,omitempty"`
	Indicators []Indicator `json:"indicators"`
}

// IndicatorRecord is the flattened structure for database storage
type IndicatorRecord struct {
	ID                  int64
	Value               string
	IndicatorType       string
	Comment             string
	FirstSeen           string
	LastSeen            string
	UpdatedAt           string
	Confidence          string
	KillChain           string
	ActivityGroups      string
	AttackTechniques    string
	PreAttackTechniques string
}

// ToRecord converts an Indicator to an IndicatorRecord for database storage
func (i *Indicator) ToRecord() IndicatorRecord {
	return IndicatorRecord{
		ID:                  i.ID,
		Value:               i.Value,
		IndicatorType:       i.IndicatorType,
		Comment:             i.Comment,
		FirstSeen:           i.FirstSeen,
		LastSeen:            i.LastSeen,
		UpdatedAt:           i.UpdatedAt,
		Confidence:          i.Confidence,
		KillChain:           i.KillChain,
		ActivityGroups:      strings.Join(i.ActivityGroups, TagSeparator),
		AttackTechniques:    strings.Join(i.AttackTechniques, TagSeparator),
		PreAttackTechniques: strings.Join(i.PreAttackTechniques, TagSeparator),
	}
}
