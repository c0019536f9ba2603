package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/comanda-app/api/internal/platform/config"
	"github.com/comanda-app/api/internal/platform/events"
	pfirestore "github.com/comanda-app/api/internal/platform/firestore"
	firestoreRepo "github.com/comanda-app/api/internal/repositories/firestore"
	"github.com/comanda-app/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders  services.OrderService
	Catalog services.CatalogResolver
}

// Container wires repositories, services, and messaging infrastructure for runtime use.
type Container struct {
	Config   config.Config
	Provider *pfirestore.Provider
	Services Services

	pubsubClient *pubsub.Client
}

// NewContainer constructs the runtime dependency graph from configuration.
// The provided logger feeds service-level event logging; it may be nil.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		return nil, fmt.Errorf("initialise firestore client: %w", err)
	}

	orderRepo, err := firestoreRepo.NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	historyRepo, err := firestoreRepo.NewOrderHistoryRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order history repository: %w", err)
	}
	variantRepo, err := firestoreRepo.NewVariantRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build variant repository: %w", err)
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}

	unitOfWork, err := pfirestore.NewUnitOfWork(provider)
	if err != nil {
		return nil, fmt.Errorf("build unit of work: %w", err)
	}

	resolver, err := services.NewCatalogResolver(services.CatalogResolverDeps{
		Variants: variantRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog resolver: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Provider: provider,
	}

	var publisher services.OrderEventPublisher
	if topic := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); topic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialise pubsub client: %w", err)
		}
		container.pubsubClient = client
		publisher, err = events.NewPubSubOrderEventPublisher(client.Topic(topic))
		if err != nil {
			return nil, fmt.Errorf("build order event publisher: %w", err)
		}
	}

	ordersLogger := logger.Named("orders")
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     orderRepo,
		History:    historyRepo,
		Counters:   counterRepo,
		Resolver:   resolver,
		UnitOfWork: unitOfWork,
		Clock:      time.Now,
		Events:     publisher,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			ordersLogger.Warn("order service log", zFields...)
		},
		Currency:     cfg.Orders.Currency,
		NumberPrefix: cfg.Orders.NumberPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	container.Services = Services{
		Orders:  orderService,
		Catalog: resolver,
	}
	return container, nil
}

// Close releases the Firestore and Pub/Sub clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.Provider != nil {
		if err := c.Provider.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
