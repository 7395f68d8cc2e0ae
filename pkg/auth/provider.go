package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// Provider tags which identity provider issued a token. The set is
// closed: a token is classified as exactly one of AzureAD, Zitadel or
// Unknown.
type Provider string

// Provider tags.
const (
	// ProviderAzureAD is the Microsoft Entra ID (Azure AD) tenant used by
	// interactive registry users.
	ProviderAzureAD Provider = "azuread"

	// ProviderZitadel is the Zitadel instance used by member
	// organizations, interactive and machine-to-machine.
	ProviderZitadel Provider = "zitadel"

	// ProviderUnknown marks a token whose issuer matches no configured
	// provider. Unknown tokens are rejected before any validation runs.
	ProviderUnknown Provider = "unknown"
)

// String returns the provider tag.
func (p Provider) String() string {
	return string(p)
}

// Dispatcher classifies a raw token by its issuer claim so the matching
// provider validator can be selected.
//
// Classification decodes the token without verifying its signature, solely
// to read the iss claim, and compares it for exact string equality against
// the configured issuer URLs. Substring matching on the issuer is
// deliberately not used: a hostile issuer could embed a known provider's
// URL inside its own. The dispatcher performs no signature or claim
// verification itself.
type Dispatcher struct {
	issuers map[string]Provider
	parser  *jwt.Parser
}

// NewDispatcher builds a dispatcher for the enabled providers in cfg.
func NewDispatcher(cfg config.Gateway) *Dispatcher {
	issuers := make(map[string]Provider, 2)
	if cfg.AzureAD.Enabled() {
		issuers[cfg.AzureAD.IssuerURL] = ProviderAzureAD
	}
	if cfg.Zitadel.Enabled() {
		issuers[cfg.Zitadel.IssuerURL] = ProviderZitadel
	}
	return &Dispatcher{
		issuers: issuers,
		parser:  jwt.NewParser(),
	}
}

// Dispatch classifies the raw token into a provider tag.
//
// Error codes returned:
//   - [gwerr.CodeAuthMalformedCredential]: the token cannot be decoded
//   - [gwerr.CodeAuthUnknownIssuer]: the issuer matches no configured
//     provider, or the token carries no issuer claim
//
// Both failures collapse to a generic 401 at the HTTP layer.
func (d *Dispatcher) Dispatch(rawToken string) (Provider, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(rawToken, claims); err != nil {
		return ProviderUnknown, gwerr.Wrap(err, gwerr.CodeAuthMalformedCredential,
			"auth: token cannot be decoded")
	}

	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return ProviderUnknown, gwerr.New(gwerr.CodeAuthUnknownIssuer,
			"auth: token carries no issuer claim")
	}

	provider, ok := d.issuers[issuer]
	if !ok {
		return ProviderUnknown, gwerr.Newf(gwerr.CodeAuthUnknownIssuer,
			"auth: issuer %q matches no configured provider", issuer)
	}
	return provider, nil
}
