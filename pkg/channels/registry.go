package channels

import (
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// NewRegistryFromConfig builds the full sender registry. Channels with a
// configured provider endpoint get an HTTP sender; the rest fall back to
// the logging sender.
func NewRegistryFromConfig(cfg *config.ChannelConfig, logger *zap.Logger) *Registry {
	registry := NewRegistry()

	if cfg.EmailEndpoint != "" {
		registry.Register(models.ChannelEmail,
			NewEmailSender(cfg.EmailEndpoint, cfg.EmailAPIKey, cfg.EmailFrom, cfg.Timeout, logger.Named("email")))
	} else {
		registry.Register(models.ChannelEmail, NewLogSender(models.ChannelEmail, logger.Named("email")))
	}

	if cfg.WhatsAppEndpoint != "" {
		registry.Register(models.ChannelWhatsApp,
			NewWhatsAppSender(cfg.WhatsAppEndpoint, cfg.WhatsAppToken, cfg.WhatsAppFrom, cfg.Timeout, logger.Named("whatsapp")))
	} else {
		registry.Register(models.ChannelWhatsApp, NewLogSender(models.ChannelWhatsApp, logger.Named("whatsapp")))
	}

	if cfg.CallEndpoint != "" {
		registry.Register(models.ChannelCall,
			NewCallSender(cfg.CallEndpoint, cfg.Timeout, logger.Named("call")))
	} else {
		registry.Register(models.ChannelCall, NewLogSender(models.ChannelCall, logger.Named("call")))
	}

	if cfg.PaymentEndpoint != "" {
		registry.Register(models.ChannelPayment,
			NewPaymentSender(cfg.PaymentEndpoint, cfg.PaymentAPIKey, cfg.Timeout, logger.Named("payment")))
	} else {
		registry.Register(models.ChannelPayment, NewLogSender(models.ChannelPayment, logger.Named("payment")))
	}

	return registry
}
