package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogforge/api/internal/platform/config"
	"github.com/catalogforge/api/internal/repositories"
	"github.com/catalogforge/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Generation services.VariantGenerationService
	Matrix     services.VariantMatrixService
	Templates  services.AxisTemplateService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Events       services.VariantEventPublisher
}

// LogFunc receives structured service-level events.
type LogFunc func(ctx context.Context, event string, fields map[string]any)

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, events services.VariantEventPublisher, logFn LogFunc) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(reg, cfg, events, logFn)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		Events:       events,
	}, nil
}

// Close releases resources such as repository clients or background publishers.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, events services.VariantEventPublisher, logFn LogFunc) (Services, error) {
	var svc Services

	variantsRepo := reg.Variants()
	if variantsRepo != nil {
		generationSvc, err := services.NewVariantGenerationService(services.VariantGenerationServiceDeps{
			Variants:        variantsRepo,
			Events:          events,
			MaxCombinations: cfg.Generation.MaxCombinations,
			Clock:           time.Now,
			Logger:          logFn,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build variant generation service: %w", err)
		}
		svc.Generation = generationSvc

		matrixSvc, err := services.NewVariantMatrixService(services.VariantMatrixServiceDeps{
			Variants: variantsRepo,
			Events:   events,
			Clock:    time.Now,
			Logger:   logFn,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build variant matrix service: %w", err)
		}
		svc.Matrix = matrixSvc
	}

	if templatesRepo := reg.AxisTemplates(); templatesRepo != nil {
		templateSvc, err := services.NewAxisTemplateService(services.AxisTemplateServiceDeps{
			Templates: templatesRepo,
			Clock:     time.Now,
			Logger:    logFn,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build axis template service: %w", err)
		}
		svc.Templates = templateSvc
	}

	return svc, nil
}
