package dto

type TileURI struct {
	Z string `uri:"z" validate:"required,numeric"`
	X string `uri:"x" validate:"required,numeric"`
	Y string `uri:"y" validate:"required,numeric"`
}

type CacheStatsResponse struct {
	Entries    int    `json:"entries"`
	Bytes      int64  `json:"bytes"`
	Budget     int64  `json:"budget"`
	Used       string `json:"used"`
	BudgetText string `json:"budget_text"`
}

type WorkerStateResponse struct {
	State string `json:"state"`
}
