package account

import (
	"time"

	"gorm.io/gorm"
)

// Account holds one marketplace account's credentials, sync state and
// document defaults. The EnableSync flag is cleared exactly once when a
// sync run exhausts its retry budget and must be re-enabled by an operator.
type Account struct {
	gorm.Model `json:"-"`
	Name       string `gorm:"uniqueIndex" json:"name"`
	Company    string `json:"company"`
	// BaseCurrency is the company currency Payment Entries are received in
	BaseCurrency string `json:"base_currency"`

	// SP-API credentials
	IAMArn       string `json:"iam_arn"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RefreshToken string `json:"-"`
	AWSAccessKey string `json:"aws_access_key"`
	AWSSecretKey string `json:"-"`
	CountryCode  string `json:"country_code"`

	// Sync behaviour
	MaxRetryLimit int        `json:"max_retry_limit"`
	EnableSync    bool       `json:"enable_sync"`
	CreatedAfter  time.Time  `json:"created_after"`
	LastSyncAt    *time.Time `json:"last_sync_at"`

	// Document defaults
	CustomerGroup           string `json:"customer_group"`
	Territory               string `json:"territory"`
	CustomerType            string `json:"customer_type"`
	Warehouse               string `json:"warehouse"`
	TaxesChargesAccount     string `json:"taxes_charges_account"`
	PayoutAccount           string `json:"payout_account"`
	MarketplaceAccountGroup string `json:"marketplace_account_group"`
	CreateItemIfMissing     bool   `json:"create_item_if_missing"`

	FieldMappings []ItemFieldMapping `gorm:"foreignKey:AccountName;references:Name" json:"field_mappings"`
}

// ItemFieldMapping maps one marketplace order-item field onto an ERP item
// field. Mappings are tried in Priority order when resolving items; only
// rows with UseToFindItem set participate in the lookup.
type ItemFieldMapping struct {
	gorm.Model       `json:"-"`
	AccountName      string `gorm:"index" json:"account_name"`
	MarketplaceField string `json:"marketplace_field"`
	ItemField        string `json:"item_field"`
	UseToFindItem    bool   `json:"use_to_find_item"`
	Priority         int    `json:"priority"`
}
