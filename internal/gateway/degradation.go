package gateway

import (
	"github.com/ss3211545/stock-web-app/internal/contracts"
	"github.com/ss3211545/stock-web-app/pkg/logger"
)

// DegradationController is the single permission point for data
// substitution. Every substitution the gateway performs passes through
// Allow, so a quote value can never silently arrive from a substitute.
// ⭐ SSOT: 降级判定只在这里
type DegradationController struct {
	cfg    contracts.DegradationConfig
	logger *logger.Logger
}

// NewDegradationController validates the config before any network
// activity happens.
func NewDegradationController(cfg contracts.DegradationConfig, log *logger.Logger) (*DegradationController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DegradationController{cfg: cfg, logger: log}, nil
}

// Config returns the active configuration for reporting.
func (d *DegradationController) Config() contracts.DegradationConfig {
	return d.cfg
}

// Allow reports whether the configured level permits the substitution
// kind. Disabled means no substitution of any kind.
func (d *DegradationController) Allow(kind contracts.SubstitutionKind) bool {
	if !d.cfg.Enabled {
		return false
	}
	return d.cfg.Level.AtLeast(contracts.MinLevelFor(kind))
}

// Approve is Allow plus an audit log line when the substitution goes
// through, tagged with what was substituted and for which field.
func (d *DegradationController) Approve(kind contracts.SubstitutionKind, field contracts.FieldName, detail string) bool {
	if !d.Allow(kind) {
		return false
	}
	d.logger.WithFields(map[string]interface{}{
		"kind":   string(kind),
		"field":  string(field),
		"detail": detail,
		"level":  string(d.cfg.Level),
	}).Debug("Degradation substitution approved")
	return true
}
