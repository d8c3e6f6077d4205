package dto

type ReconcileResponse struct {
	Family    string `json:"family"`
	Processed int    `json:"processed"`

	// Families breaks an "all" pass down per family
	Families map[string]int `json:"families,omitempty"`
}

type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Checks      map[string]string `json:"checks"`
}
