package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	misprint "github.com/Moriyan1307/misprint-demo"
	"github.com/Moriyan1307/misprint-demo/client"
	"github.com/Moriyan1307/misprint-demo/events"
	eventsmemory "github.com/Moriyan1307/misprint-demo/events/memory"
	eventsredis "github.com/Moriyan1307/misprint-demo/events/redis"
	"github.com/Moriyan1307/misprint-demo/locks"
	"github.com/Moriyan1307/misprint-demo/logging"
	"github.com/Moriyan1307/misprint-demo/models"
	"github.com/Moriyan1307/misprint-demo/service"
	"github.com/Moriyan1307/misprint-demo/service/embedded"
	"github.com/Moriyan1307/misprint-demo/store"
	storememory "github.com/Moriyan1307/misprint-demo/store/memory"
	storesqlite "github.com/Moriyan1307/misprint-demo/store/sqlite"
)

// Services holds initialized application services.
type Services struct {
	// ShopService is the main interface (always set for both modes)
	ShopService service.ShopService

	// Internal components (only set for embedded mode, nil for remote mode)
	Coordinator    *misprint.Coordinator
	Store          store.Store
	EventPublisher events.Publisher
	Logger         *slog.Logger
	Config         *Config
}

// Initialize creates and returns all application services.
func (c *Config) Initialize(ctx context.Context, logger *slog.Logger) (*Services, error) {
	// Create shop-specific logger with configured log level
	logger = logging.NewLogger(c.GetLogLevel())

	switch c.Mode {
	case ModeRemote:
		return c.initializeRemote(logger)
	case ModeEmbedded, "":
		return c.initializeEmbedded(ctx, logger)
	default:
		return nil, fmt.Errorf("unknown shop mode: %s", c.Mode)
	}
}

// initializeRemote creates a remote client service.
func (c *Config) initializeRemote(logger *slog.Logger) (*Services, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("shop URL required for remote mode")
	}

	logger.Info("Initializing shop in remote mode", slog.String("url", c.URL))

	return &Services{
		ShopService: client.New(c.URL),
		Logger:      logger,
		Config:      c,
	}, nil
}

// initializeEmbedded creates all embedded services.
func (c *Config) initializeEmbedded(ctx context.Context, logger *slog.Logger) (*Services, error) {
	logger.Info("Initializing shop in embedded mode")

	// Initialize store
	logger.Info("Initializing store", slog.String("type", c.Database.Type))
	var st store.Store
	switch c.Database.Type {
	case "memory":
		st = storememory.NewStore()
	case "sqlite", "":
		dbPath := c.Database.SQLitePath
		if len(dbPath) >= 2 && dbPath[:2] == "~/" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve home directory for database: %w", err)
			}
			dbPath = path.Join(homeDir, dbPath[2:])
		}
		var err error
		st, err = storesqlite.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	// Initialize event publisher
	logger.Info("Initializing event publisher", slog.String("type", c.Events.Type))
	var eventPublisher events.Publisher
	switch c.Events.Type {
	case "memory", "":
		eventPublisher = eventsmemory.NewBroker(c.Events.BufferSize, logger)
	case "redis":
		var err error
		eventPublisher, err = eventsredis.NewBroker(c.Events.RedisURL, c.Events.BufferSize, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create redis event publisher: %w", err)
		}
	default:
		_ = st.Close()
		return nil, fmt.Errorf("unsupported event publisher type: %s", c.Events.Type)
	}

	// Seed items
	for _, item := range c.Items {
		if err := st.SeedItem(ctx, &models.Item{
			ID:              item.ID,
			Name:            item.Name,
			Description:     item.Description,
			ImageURL:        item.ImageURL,
			Quantity:        item.Quantity,
			InitialQuantity: item.Quantity,
		}); err != nil {
			_ = eventPublisher.Close()
			_ = st.Close()
			return nil, fmt.Errorf("failed to seed item %q: %w", item.ID, err)
		}
	}
	logger.Info("Seeded items", slog.Int("count", len(c.Items)))

	// Create coordinator
	coordinator, err := misprint.New(misprint.Config{
		Store:     st,
		Publisher: eventPublisher,
		Locks:     locks.NewManager(),
		Logger:    logger,
	})
	if err != nil {
		_ = eventPublisher.Close()
		_ = st.Close()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	// Create embedded service
	embeddedService, err := embedded.New(coordinator)
	if err != nil {
		_ = eventPublisher.Close()
		_ = st.Close()
		return nil, fmt.Errorf("failed to create embedded service: %w", err)
	}

	return &Services{
		ShopService:    embeddedService,
		Coordinator:    coordinator,
		Store:          st,
		EventPublisher: eventPublisher,
		Logger:         logger,
		Config:         c,
	}, nil
}

// Close gracefully shuts down all services.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}

	var errs []error

	// Closing the service closes the event publisher via the coordinator.
	if s.ShopService != nil {
		if err := s.ShopService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("service close: %w", err))
		}
	}

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	return errors.Join(errs...)
}
