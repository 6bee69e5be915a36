package domain

// Gateway is a configured payment provider. Environment is "test" or "live".
type Gateway struct {
	ID                  string
	Name                string
	IsActive            bool
	Environment         string
	BusinessName        string
	SupportsCreditCards bool
	SupportsDirectDebit bool
}
