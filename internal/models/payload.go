package models

// Typed payload schemas per record kind. The sync engine itself treats
// payloads as opaque maps; these structs exist so the API boundary can
// reject malformed domain data instead of storing it (see
// internal/validation).

// FarmPayload is the schema for KindFarm records.
type FarmPayload struct {
	Name          string   `json:"name"           validate:"required,max=200"`
	FarmType      string   `json:"farm_type"      validate:"required,oneof=crop livestock mixed aquaculture forestry"`
	FarmingSystem string   `json:"farming_system" validate:"omitempty,oneof=subsistence commercial mixed organic traditional"`
	Ownership     string   `json:"ownership"      validate:"omitempty,oneof=owned rented leased sharecropped communal traditional family"`
	TotalAreaHa   float64  `json:"total_area_ha"  validate:"gte=0"`
	Notes         []string `json:"notes"          validate:"omitempty,dive,max=2000"`
}

// PlotPayload is the schema for KindPlot records.
type PlotPayload struct {
	FarmID      string   `json:"farm_id"      validate:"required,uuid4"`
	Name        string   `json:"name"         validate:"required,max=200"`
	AreaHa      float64  `json:"area_ha"      validate:"gte=0"`
	SoilType    string   `json:"soil_type"    validate:"omitempty,oneof=clay sandy loam silt laterite volcanic alluvial"`
	Irrigation  string   `json:"irrigation"   validate:"omitempty,oneof=rainfed drip sprinkler flood furrow traditional"`
	CropVariety string   `json:"crop_variety" validate:"omitempty,max=100"`
	CropStage   string   `json:"crop_stage"   validate:"omitempty,oneof=land_preparation planting germination vegetative flowering fruiting maturity harvest"`
	Notes       []string `json:"notes"        validate:"omitempty,dive,max=2000"`
}

// ObservationPayload is the schema for KindObservation records.
type ObservationPayload struct {
	PlotID     string   `json:"plot_id"     validate:"required,uuid4"`
	ObservedOn string   `json:"observed_on" validate:"required,datetime=2006-01-02"`
	Category   string   `json:"category"    validate:"required,oneof=growth pest disease soil water weather"`
	Severity   int      `json:"severity"    validate:"gte=0,lte=5"`
	Details    string   `json:"details"     validate:"omitempty,max=4000"`
	Notes      []string `json:"notes"       validate:"omitempty,dive,max=2000"`
}

// LivestockPayload is the schema for KindLivestock records.
type LivestockPayload struct {
	FarmID       string   `json:"farm_id"       validate:"required,uuid4"`
	Species      string   `json:"species"       validate:"required,max=100"`
	Breed        string   `json:"breed"         validate:"omitempty,max=100"`
	Headcount    int      `json:"headcount"     validate:"gte=0"`
	HealthStatus string   `json:"health_status" validate:"omitempty,max=200"`
	Notes        []string `json:"notes"         validate:"omitempty,dive,max=2000"`
}

// TransactionPayload is the schema for KindTransaction records.
type TransactionPayload struct {
	FarmID       string   `json:"farm_id"      validate:"required,uuid4"`
	Kind         string   `json:"kind"         validate:"required,oneof=sale purchase"`
	Item         string   `json:"item"         validate:"required,max=200"`
	Quantity     float64  `json:"quantity"     validate:"gt=0"`
	Unit         string   `json:"unit"         validate:"omitempty,max=20"`
	Amount       float64  `json:"amount"       validate:"gte=0"`
	Currency     string   `json:"currency"     validate:"omitempty,len=3,alpha"`
	Counterparty string   `json:"counterparty" validate:"omitempty,max=200"`
	History      []string `json:"history"      validate:"omitempty,dive,max=2000"`
}
