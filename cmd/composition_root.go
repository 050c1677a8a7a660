package cmd

import (
	"context"
	"net/http"
	"time"

	apihttp "freight/internal/adapters/in/http"
	"freight/internal/adapters/in/pgnotify"
	"freight/internal/adapters/in/ws"
	"freight/internal/adapters/out/compliance"
	"freight/internal/adapters/out/kafka"
	"freight/internal/adapters/out/postgres"
	"freight/internal/adapters/out/postgres/masterorderrepo"
	"freight/internal/adapters/out/pricefeed"
	"freight/internal/adapters/out/rabbitmq"
	"freight/internal/core/application/broadcast"
	"freight/internal/core/application/consensus"
	"freight/internal/core/application/usecases/commands"
	"freight/internal/core/application/usecases/queries"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/domain/services"
	"freight/internal/core/ports"
	"freight/internal/jobs"
	"freight/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type closer interface {
	Close() error
}

// CompositionRoot owns the process-wide collaborators and builds handlers
// on top of them.
type CompositionRoot struct {
	cfg        Config
	logger     *zap.Logger
	gormDB     *gorm.DB
	uowFactory *postgres.GormUnitOfWorkFactory

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	events      ports.EventPublisher
	audit       ports.AuditRecorder
	compliance  ports.ComplianceChecker
	oracle      *consensus.Oracle
	broadcaster *broadcast.Broadcaster
	ledger      *commands.Ledger

	closers []closer
}

func NewCompositionRoot(cfg Config, gormDB *gorm.DB, logger *zap.Logger) (*CompositionRoot, error) {
	c := &CompositionRoot{
		cfg:        cfg,
		logger:     logger,
		gormDB:     gormDB,
		uowFactory: postgres.NewGormUnitOfWorkFactory(gormDB),
		registry:   prometheus.NewRegistry(),
	}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.metrics = metrics.New(c.registry)

	c.broadcaster = broadcast.New(
		c.CreateGetProgressQueryHandler(),
		c.metrics,
		logger,
		broadcast.WithBufferSize(cfg.Broadcast.BufferSize),
	)

	c.events = c.newEventPublisher()
	c.ledger = commands.NewLedger(c.events, c.broadcaster, logger)

	audit, err := c.newAuditRecorder()
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	c.audit = audit

	checker, err := compliance.NewPolicyChecker(cfg.Compliance.PolicyPath, logger)
	if err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	c.compliance = checker

	factory := pricefeed.NewFactory(&http.Client{Timeout: cfg.Oracle.HTTPTimeout}, logger)
	lister := consensus.ProviderListerFunc(func(ctx context.Context) ([]*oracle.Provider, error) {
		return c.uowFactory.Create().ProviderRepository().List(ctx)
	})
	c.oracle = consensus.New(
		cfg.Oracle.Config,
		consensus.NewRegistry(lister, factory, logger),
		postgres.NewRoutePriceHistory(gormDB),
		c.metrics,
		logger,
	)

	return c, nil
}

func (c *CompositionRoot) newEventPublisher() ports.EventPublisher {
	if len(c.cfg.Kafka.Brokers) == 0 {
		c.logger.Info("kafka brokers not configured, domain events are only logged")
		return kafka.NewLogPublisher(c.logger)
	}
	p := kafka.NewEventPublisher(c.cfg.Kafka.Brokers, c.cfg.Kafka.Topic, c.logger)
	c.closers = append(c.closers, p)
	return p
}

func (c *CompositionRoot) newAuditRecorder() (ports.AuditRecorder, error) {
	if c.cfg.RabbitMQ.URL == "" {
		c.logger.Info("rabbitmq url not configured, audit records are only logged")
		return rabbitmq.NewLogRecorder(c.logger), nil
	}
	r, err := rabbitmq.NewAuditRecorder(c.cfg.RabbitMQ.URL, c.cfg.RabbitMQ.Queue, c.logger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, r)
	return r, nil
}

// Close releases the broker connections.
func (c *CompositionRoot) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i].Close())
	}
	c.closers = nil
	return err
}

func (c *CompositionRoot) masterOrderUoWFactory() commands.MasterOrderUoWFactory {
	return FuncMasterOrderUoWFactory(func() commands.MasterOrderUoW {
		return c.uowFactory.Create()
	})
}

func (c *CompositionRoot) providerUoWFactory() commands.ProviderUoWFactory {
	return FuncProviderUoWFactory(func() commands.ProviderUoW {
		return c.uowFactory.Create()
	})
}

// masterOrderReader reads outside any transaction.
func (c *CompositionRoot) masterOrderReader() queries.MasterOrderReader {
	return FuncMasterOrderReader(func(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
		return c.uowFactory.Create().MasterOrderRepository().Get(ctx, id)
	})
}

func (c *CompositionRoot) CreateCreateMasterOrderCommandHandler() commands.CreateMasterOrderCommandHandler {
	return commands.NewCreateMasterOrderCommandHandler(c.masterOrderUoWFactory(), c.ledger)
}

func (c *CompositionRoot) CreatePlaceBidCommandHandler() commands.PlaceBidCommandHandler {
	return commands.NewPlaceBidCommandHandler(c.masterOrderUoWFactory(), c.ledger, c.compliance, c.oracle, c.metrics)
}

func (c *CompositionRoot) CreateCancelMasterOrderCommandHandler() commands.CancelMasterOrderCommandHandler {
	return commands.NewCancelMasterOrderCommandHandler(c.masterOrderUoWFactory(), c.ledger)
}

func (c *CompositionRoot) CreateChangePartialOrderCommandHandler() commands.ChangePartialOrderCommandHandler {
	return commands.NewChangePartialOrderCommandHandler(c.masterOrderUoWFactory(), c.ledger)
}

func (c *CompositionRoot) providerAdmin() *commands.ProviderAdmin {
	return commands.NewProviderAdmin(c.providerUoWFactory(), c.oracle, c.audit, c.logger)
}

func (c *CompositionRoot) CreateGetProgressQueryHandler() queries.GetProgressQueryHandler {
	return queries.NewGetProgressQueryHandler(c.masterOrderReader(), time.Now)
}

func (c *CompositionRoot) CreateGetRecommendationsQueryHandler() queries.GetRecommendationsQueryHandler {
	return queries.NewGetRecommendationsQueryHandler(c.masterOrderReader(), services.NewProgressAdvisor(), time.Now)
}

func (c *CompositionRoot) CreateGetLastBroadcastQueryHandler() queries.GetLastBroadcastQueryHandler {
	return queries.NewGetLastBroadcastQueryHandler(c.broadcaster)
}

func (c *CompositionRoot) CreateListProvidersQueryHandler() queries.ListProvidersQueryHandler {
	return queries.NewListProvidersQueryHandler(c.gormDB)
}

// HTTPHandlers collects every use case the API serves.
func (c *CompositionRoot) HTTPHandlers() apihttp.Handlers {
	admin := c.providerAdmin()
	return apihttp.Handlers{
		CreateMasterOrder:  c.CreateCreateMasterOrderCommandHandler(),
		PlaceBid:           c.CreatePlaceBidCommandHandler(),
		CancelMasterOrder:  c.CreateCancelMasterOrderCommandHandler(),
		ChangePartialOrder: c.CreateChangePartialOrderCommandHandler(),

		GetProgress:        c.CreateGetProgressQueryHandler(),
		GetLastBroadcast:   c.CreateGetLastBroadcastQueryHandler(),
		GetRecommendations: c.CreateGetRecommendationsQueryHandler(),

		GetFuelSurcharge: queries.NewGetFuelSurchargeQueryHandler(c.oracle),
		ValidatePrice:    queries.NewValidatePriceQueryHandler(c.oracle),

		ListProviders:    c.CreateListProvidersQueryHandler(),
		RegisterProvider: commands.NewRegisterProviderCommandHandler(admin),
		UpdateProvider:   commands.NewUpdateProviderCommandHandler(admin),
		DeleteProvider:   commands.NewDeleteProviderCommandHandler(admin),
		AdjustProvider:   commands.NewAdjustProviderCommandHandler(admin),
	}
}

// HTTPRouter builds the echo instance serving the API, /ws and the ambient routes.
func (c *CompositionRoot) HTTPRouter() (*echo.Echo, error) {
	wsCfg := ws.DefaultConfig()
	wsCfg.WriteWait = c.cfg.Broadcast.WriteWait
	wsCfg.PongWait = c.cfg.Broadcast.PongWait
	wsCfg.PingPeriod = c.cfg.Broadcast.PongWait * 9 / 10

	return apihttp.NewRouter(apihttp.RouterConfig{
		Server:    apihttp.NewServer(c.HTTPHandlers(), c.logger),
		Logger:    c.logger,
		Gatherer:  c.registry,
		WebSocket: ws.NewHandler(c.broadcaster, wsCfg, c.logger),
		Debug:     c.cfg.HTTP.Debug,
	})
}

func (c *CompositionRoot) JobManager() *jobs.JobManager {
	return jobs.NewJobManager(c.oracle, c.broadcaster, jobs.Schedules{
		OracleRefresh:  c.cfg.Jobs.OracleRefresh,
		SessionHealth:  c.cfg.Jobs.SessionHealth,
		RefreshTimeout: c.cfg.Jobs.RefreshTimeout,
	}, c.logger)
}

// ProgressRelay forwards progress committed by other instances to local subscribers.
func (c *CompositionRoot) ProgressRelay() *pgnotify.Relay {
	return pgnotify.NewRelay(
		pgnotify.NewListener(c.cfg.Database.DSN(), c.logger),
		masterorderrepo.ProgressChannel,
		c.CreateGetProgressQueryHandler(),
		c.broadcaster,
		c.logger,
	)
}

type FuncMasterOrderUoWFactory func() commands.MasterOrderUoW

func (f FuncMasterOrderUoWFactory) Create() commands.MasterOrderUoW {
	return f()
}

type FuncProviderUoWFactory func() commands.ProviderUoW

func (f FuncProviderUoWFactory) Create() commands.ProviderUoW {
	return f()
}

type FuncMasterOrderReader func(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error)

func (f FuncMasterOrderReader) Get(ctx context.Context, id kernel.UUID) (*order.MasterOrder, error) {
	return f(ctx, id)
}
