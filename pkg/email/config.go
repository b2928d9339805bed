package email

// Config holds email transport configuration.
// The Postmark tokens are optional so development environments can run with
// the dev sender instead of a live transport. SenderEmail establishes the
// From identity of every notification email, CompanyName its display name.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	CompanyName          string `env:"COMPANY_NAME" envDefault:"PeopleHub"`
}
