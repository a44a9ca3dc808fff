package model

import "time"

// Tier groups projects and datamaps by reporting regime.
type Tier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// Project is a reporting project.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TierID string `json:"tier_id,omitempty"`
}

// Return is one project's submission for one financial quarter.
type Return struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Quarter   Quarter   `json:"quarter"`
	CreatedAt time.Time `json:"created_at"`
}

// ReturnFilter specifies criteria for listing returns.
type ReturnFilter struct {
	ProjectID string `json:"project_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ReturnItem is one extracted value of a return. At most one Value* field is
// set; all are nil when the source cell was empty.
type ReturnItem struct {
	ID            string     `json:"id"`
	ReturnID      string     `json:"return_id"`
	DatamapLineID string     `json:"datamap_line_id"`
	Key           string     `json:"key"`
	Sheet         string     `json:"sheet"`
	CellRef       string     `json:"cell_ref"`
	ValueStr      *string    `json:"value_str"`
	ValueInt      *int64     `json:"value_int"`
	ValueFloat    *float64   `json:"value_float"`
	ValueDate     *time.Time `json:"value_date"`
	ValuePhone    *string    `json:"value_phone"`
}

// Value returns whichever slot is set, or nil.
func (ri ReturnItem) Value() any {
	switch {
	case ri.ValueStr != nil:
		return *ri.ValueStr
	case ri.ValueInt != nil:
		return *ri.ValueInt
	case ri.ValueFloat != nil:
		return *ri.ValueFloat
	case ri.ValueDate != nil:
		return *ri.ValueDate
	case ri.ValuePhone != nil:
		return *ri.ValuePhone
	}
	return nil
}
