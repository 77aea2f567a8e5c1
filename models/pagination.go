package models

// Pagination mirrors the shape the front-end reads back on list endpoints.
type Pagination struct {
	Pages   int `json:"pages"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}
