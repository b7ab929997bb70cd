package relay

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthResponse reports which configuration values are present. It never
// includes the values themselves.
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Provider  string       `json:"provider"`
	Config    ConfigHealth `json:"config"`
}

// ConfigHealth holds presence flags for each configuration value.
type ConfigHealth struct {
	HasGatewayURL bool `json:"hasGatewayUrl"`
	HasUseCaseID  bool `json:"hasUseCaseId"`
	HasCloudID    bool `json:"hasCloudId"`
	HasUserID     bool `json:"hasUserId"`
	HasPrivateKey bool `json:"hasPrivateKey"`
	HasIssuer     bool `json:"hasIssuer"`
	HasKeyID      bool `json:"hasKeyId"`
	SignerReady   bool `json:"signerReady"`
}

func (r *Relay) handleHealth(c *fiber.Ctx) error {
	cfg := r.config
	return c.JSON(HealthResponse{
		Status:    "ok",
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Provider:  r.provider.String(),
		Config: ConfigHealth{
			HasGatewayURL: cfg.UpstreamURL != "",
			HasUseCaseID:  cfg.Identity.UseCaseID != "",
			HasCloudID:    cfg.Identity.CloudID != "",
			HasUserID:     cfg.Identity.UserID != "",
			HasPrivateKey: cfg.Credential.PrivateKey != "",
			HasIssuer:     cfg.Credential.Issuer != "",
			HasKeyID:      cfg.Credential.KeyID != "",
			SignerReady:   r.signer != nil,
		},
	})
}
