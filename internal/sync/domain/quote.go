package domain

import "time"

// Quote is the bridge's view of a quote record. The descriptive and
// financial snapshot columns are read-only inputs here, owned by the CRUD
// side; the bridge owns sync_status and excel_file_path.
type Quote struct {
	ID            string  `db:"id"`
	Reference     string  `db:"reference"`
	SyncStatus    Status  `db:"sync_status"`
	ExcelFilePath string  `db:"excel_file_path"`
	TotalAmount   float64 `db:"total_amount"`

	ClientName       string `db:"client_name"`
	ClientCity       string `db:"client_city"`
	ClientRegion     string `db:"client_region"`
	ClientAddress    string `db:"client_address"`
	ClientPostalCode string `db:"client_postal_code"`
	ClientLanguage   string `db:"client_language"`

	ContactFirstName string `db:"contact_first_name"`
	ContactLastName  string `db:"contact_last_name"`
	ContactPhone     string `db:"contact_phone"`
	ContactMobile    string `db:"contact_mobile"`
	ContactFax       string `db:"contact_fax"`
	ContactEmail     string `db:"contact_email"`

	RepFirstName string `db:"rep_first_name"`
	RepLastName  string `db:"rep_last_name"`
	RepPhone     string `db:"rep_phone"`
	RepMobile    string `db:"rep_mobile"`
	RepFax       string `db:"rep_fax"`
	RepEmail     string `db:"rep_email"`

	ProjectName string `db:"project_name"`

	MaterialName     string  `db:"material_name"`
	MaterialQuality  string  `db:"material_quality"`
	MaterialUnit     string  `db:"material_unit"`
	MaterialDensity  float64 `db:"material_density"`
	MaterialPrice    float64 `db:"material_price"`
	MaterialWastePct float64 `db:"material_waste_pct"`

	Currency           string  `db:"currency"`
	ExchangeRate       float64 `db:"exchange_rate"`
	Incoterm           string  `db:"incoterm"`
	IncotermCode       string  `db:"incoterm_code"`
	IncotermCustomText string  `db:"incoterm_custom_text"`
	PaymentCode        int     `db:"payment_code"`
	PaymentDays        int     `db:"payment_days"`
	PaymentCustomText  string  `db:"payment_custom_text"`
	DepositPercentage  float64 `db:"deposit_percentage"`
	DiscountPercentage float64 `db:"discount_percentage"`
	DiscountDays       int     `db:"discount_days"`
	ValidityDays       int     `db:"validity_days"`

	DateIssued time.Time `db:"date_issued"`
	UpdatedAt  time.Time `db:"updated_at"`

	Items []QuoteItem `db:"-"`
}

// QuoteItem is one line of a quote. The Result Ingester owns the full item
// set: every successful ingestion deletes and recreates it wholesale.
type QuoteItem struct {
	ID      string `db:"id"`
	QuoteID string `db:"quote_id"`

	Tag         string  `db:"tag"`
	Material    string  `db:"material"`
	Description string  `db:"description"`
	Quantity    float64 `db:"quantity"`
	Unit        string  `db:"unit"`

	Length    float64 `db:"length"`
	Width     float64 `db:"width"`
	Thickness float64 `db:"thickness"`

	NetLength   float64 `db:"net_length"`
	NetArea     float64 `db:"net_area"`
	NetVolume   float64 `db:"net_volume"`
	TotalWeight float64 `db:"total_weight"`

	UnitPrice     float64 `db:"unit_price"`
	TotalPrice    float64 `db:"total_price"`
	UnitPriceCad  float64 `db:"unit_price_cad"`
	TotalPriceCad float64 `db:"total_price_cad"`

	StoneValue          float64 `db:"stone_value"`
	PrimarySawingCost   float64 `db:"primary_sawing_cost"`
	SecondarySawingCost float64 `db:"secondary_sawing_cost"`
	ProfilingCost       float64 `db:"profiling_cost"`
	FinishingCost       float64 `db:"finishing_cost"`
	AnchoringCost       float64 `db:"anchoring_cost"`

	UnitTime  float64 `db:"unit_time"`
	TotalTime float64 `db:"total_time"`
}
