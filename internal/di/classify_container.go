package di

import (
	"go.uber.org/dig"

	"github.com/mikey/reply-intel/internal/config"
)

// BuildClassifyContainer creates a container for classifying single replies.
// It needs no platform or workspace configuration, and the verdict cache is
// off since every reply is classified once.
func BuildClassifyContainer(cfg *config.Config) (*dig.Container, error) {
	cfg.Set("cache.enabled", false)
	return buildClassification(cfg)
}
