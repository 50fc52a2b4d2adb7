package source

// FieldSourceName is the key of the name field every panel starts with.
const FieldSourceName = "source_name"

// PlaceholderTitle is shown when no panel matches the selected source.
const PlaceholderTitle = "Select data source"

// AWS option lists for the Amazon Seller Partner panel.
var (
	AWSEnvironments = []string{"Production", "Sandbox"}
	AWSRegions      = []string{
		"AE", "AU", "BE", "BR", "CA", "DE", "EG", "ES", "FR", "GB", "IN",
		"IT", "JP", "MX", "NL", "PL", "SA", "SE", "SG", "TR", "UK", "US",
	}
	AccountTypes = []string{"Seller", "Vendor"}
)

func sourceNameField(def, example string) Field {
	return Field{
		Key:         FieldSourceName,
		Label:       "Source name",
		Default:     def,
		Placeholder: "e.g. " + example,
		Required:    true,
	}
}

func secretField(key, label, placeholder string) Field {
	return Field{Key: key, Label: label, Kind: KindSecret, Placeholder: placeholder, Required: true}
}

// ShopifyPanel collects a Shopify store and its API password.
func ShopifyPanel() FormPanel {
	return FormPanel{
		SourceType: TypeShopify,
		Name:       "Shopify",
		Inputs: []Field{
			sourceNameField("Shopify", "Shopify"),
			{Key: "shopify_store", Label: "Shopify Store", Placeholder: "e.g. Analytics", Required: true},
			secretField("api_password", "API Password", "e.g. ********"),
		},
	}
}

// AmazonSellerPartnerPanel collects Selling Partner API credentials.
func AmazonSellerPartnerPanel() FormPanel {
	return FormPanel{
		SourceType: TypeAmazonSellerPartner,
		Name:       "Amazon Seller Partner",
		Inputs: []Field{
			sourceNameField("Amazon Seller Partner", "Amazon Seller Partner"),
			{Key: "aws_environment", Label: "AWS Environment", Kind: KindSelect, Options: AWSEnvironments, Required: true},
			{Key: "aws_region", Label: "AWS Region", Kind: KindSelect, Options: AWSRegions, Required: true},
			{Key: "account_type", Label: "AWS Partner Account Type", Kind: KindSelect, Options: AccountTypes, Required: true},
			{Key: "lwa_client_id", Label: "LWA Client Id", Placeholder: "e.g. *******************", Required: true},
			secretField("lwa_client_secret", "LWA Client Secret", "e.g. *******************"),
			secretField("refresh_token", "Refresh Token", "e.g. *******************"),
		},
	}
}

// AmazonAdsPanel collects Amazon Ads API credentials.
func AmazonAdsPanel() FormPanel {
	return FormPanel{
		SourceType: TypeAmazonAds,
		Name:       "Amazon Ads",
		Inputs: []Field{
			sourceNameField("Amazon Ads", "Amazon Ads"),
			{Key: "client_id", Label: "Client ID", Placeholder: "e.g. ASD2FRT5GH8BJ", Required: true},
			secretField("client_secret", "Client Secret", "e.g. ********"),
			secretField("refresh_token", "Refresh Token", "e.g. ********"),
		},
	}
}

// Placeholder is the empty panel shown for unknown or unimplemented sources.
func Placeholder() FormPanel {
	return FormPanel{Name: PlaceholderTitle}
}
