package model

// SearchResponseDTO — результат поиска, возвращаемый фронтенду.
type SearchResponseDTO struct {
	EntityType string  `json:"entity_type"` // tender или position
	EntityID   uint    `json:"entity_id"`
	TenderID   uint    `json:"tender_id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// EsDocument — документ поискового индекса по тендерам и позициям.
type EsDocument struct {
	DocID      string `json:"doc_id"` // entity_type + entity_id
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	TenderID   uint   `json:"tender_id"`
	Number     string `json:"number,omitempty"`
	Title      string `json:"title"`
	Customer   string `json:"customer,omitempty"`
	Body       string `json:"body"`
	Stage      string `json:"stage,omitempty"`
	IsArchived bool   `json:"is_archived"`
}
