package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DocuSign holds the credentials and tuning knobs shared by every process
// that talks to the vendor API. The auth server host selects demo
// (account-d.docusign.com) vs production (account.docusign.com).
type DocuSign struct {
	ClientID           string   `envconfig:"DOCUSIGN_CLIENT_ID" required:"true"`
	ImpersonatedUserID string   `envconfig:"DOCUSIGN_USER_ID" required:"true"`
	PrivateKeyPath     string   `envconfig:"DOCUSIGN_PRIVATE_KEY_PATH" required:"true"`
	AuthServer         string   `envconfig:"DOCUSIGN_AUTH_SERVER" default:"account-d.docusign.com"`
	Scopes             []string `envconfig:"DOCUSIGN_SCOPES" default:"signature,impersonation"`

	TokenExpiryMargin time.Duration `envconfig:"DOCUSIGN_TOKEN_EXPIRY_MARGIN" default:"60s"`
	CallTimeout       time.Duration `envconfig:"DOCUSIGN_CALL_TIMEOUT" default:"30s"`
	RPS               float64       `envconfig:"DOCUSIGN_RPS" default:"5"`
	Burst             int           `envconfig:"DOCUSIGN_BURST" default:"10"`

	// Anchor tag placement. The sample NDA embeds /sn1/ where the signature
	// goes; the date tab reuses the same anchor shifted right. The offsets
	// were calibrated against the sample document, so they stay configurable.
	AnchorString      string `envconfig:"DOCUSIGN_ANCHOR_STRING" default:"/sn1/"`
	SignXOffset       string `envconfig:"DOCUSIGN_SIGN_X_OFFSET" default:"20"`
	SignYOffset       string `envconfig:"DOCUSIGN_SIGN_Y_OFFSET" default:"10"`
	DateSignedXOffset string `envconfig:"DOCUSIGN_DATE_X_OFFSET" default:"120"`
	DateSignedYOffset string `envconfig:"DOCUSIGN_DATE_Y_OFFSET" default:"10"`
}

type Webhook struct {
	DocuSign

	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// HMAC key configured in DocuSign Connect. Empty disables verification,
	// which is acceptable only for local testing.
	HMACKey string `envconfig:"DOCUSIGN_HMAC_KEY"`

	// fs (flat output directory) or postgres.
	StoreBackend string `envconfig:"STORE_BACKEND" default:"fs"`
	OutputDir    string `envconfig:"WEBHOOK_OUTPUT_DIR" default:"webhook_output"`
	DBDSN        string `envconfig:"DB_DSN"`
}

type CLI struct {
	DocuSign

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func LoadWebhook() Webhook {
	var cfg Webhook
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadCLI() CLI {
	var cfg CLI
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
