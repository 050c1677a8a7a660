package http

import (
	"context"
	"net/http"

	"freight/internal/core/application/usecases/commands"
	"freight/internal/core/application/usecases/queries"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/oracle"
	"freight/internal/core/domain/model/order"
	"freight/internal/core/ports"
	"freight/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"
)

type CreateMasterOrderHandler interface {
	Handle(ctx context.Context, cmd commands.CreateMasterOrderCommand) (order.ProgressSnapshot, error)
}

type PlaceBidHandler interface {
	Handle(ctx context.Context, cmd commands.PlaceBidCommand) (commands.PlaceBidResult, error)
}

type CancelMasterOrderHandler interface {
	Handle(ctx context.Context, cmd commands.CancelMasterOrderCommand) (order.ProgressSnapshot, error)
}

type ChangePartialOrderHandler interface {
	Handle(ctx context.Context, cmd commands.ChangePartialOrderCommand) (order.ProgressSnapshot, error)
}

type GetProgressHandler interface {
	Handle(ctx context.Context, query queries.GetProgressQuery) (order.ProgressSnapshot, error)
}

type GetLastBroadcastHandler interface {
	Handle(ctx context.Context, query queries.GetLastBroadcastQuery) (order.ProgressSnapshot, error)
}

type GetRecommendationsHandler interface {
	Handle(ctx context.Context, query queries.GetRecommendationsQuery) (queries.GetRecommendationsQueryResponse, error)
}

type GetFuelSurchargeHandler interface {
	Handle(ctx context.Context, query queries.GetFuelSurchargeQuery) (oracle.Surcharge, error)
}

type ValidatePriceHandler interface {
	Handle(ctx context.Context, query queries.ValidatePriceQuery) (order.PriceAssessment, error)
}

type ListProvidersHandler interface {
	Handle(ctx context.Context, query queries.ListProvidersQuery) ([]queries.ListProvidersQueryResponse, error)
}

type RegisterProviderHandler interface {
	Handle(ctx context.Context, cmd commands.RegisterProviderCommand) (*oracle.Provider, error)
}

type UpdateProviderHandler interface {
	Handle(ctx context.Context, cmd commands.UpdateProviderCommand) (*oracle.Provider, error)
}

type DeleteProviderHandler interface {
	Handle(ctx context.Context, cmd commands.DeleteProviderCommand) error
}

type AdjustProviderHandler interface {
	Handle(ctx context.Context, cmd commands.AdjustProviderCommand) (*oracle.Provider, error)
}

// Handlers groups the use cases the HTTP API exposes.
type Handlers struct {
	// Order commands
	CreateMasterOrder  CreateMasterOrderHandler
	PlaceBid           PlaceBidHandler
	CancelMasterOrder  CancelMasterOrderHandler
	ChangePartialOrder ChangePartialOrderHandler

	// Order queries
	GetProgress        GetProgressHandler
	GetLastBroadcast   GetLastBroadcastHandler
	GetRecommendations GetRecommendationsHandler

	// Oracle
	GetFuelSurcharge GetFuelSurchargeHandler
	ValidatePrice    ValidatePriceHandler

	// Provider administration
	ListProviders    ListProvidersHandler
	RegisterProvider RegisterProviderHandler
	UpdateProvider   UpdateProviderHandler
	DeleteProvider   DeleteProviderHandler
	AdjustProvider   AdjustProviderHandler
}

// Server translates HTTP requests into commands and queries.
type Server struct {
	handlers Handlers
	logger   *zap.Logger
}

func NewServer(handlers Handlers, logger *zap.Logger) *Server {
	return &Server{handlers: handlers, logger: logger.Named("http")}
}

// CreateMasterOrder handles POST /api/v1/orders.
func (s *Server) CreateMasterOrder(ctx echo.Context) error {
	var req NewMasterOrder
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	params, err := req.toParams()
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewCreateMasterOrderCommand(kernel.NewUUID(), params)
	if err != nil {
		return s.fail(ctx, err)
	}

	snapshot, err := s.handlers.CreateMasterOrder.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, snapshot)
}

// GetProgress handles GET /api/v1/orders/{orderId}/progress.
func (s *Server) GetProgress(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}

	query, err := queries.NewGetProgressQuery(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}

	snapshot, err := s.handlers.GetProgress.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, snapshot)
}

// GetLastBroadcast handles GET /api/v1/orders/{orderId}/progress/last-broadcast.
func (s *Server) GetLastBroadcast(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}

	query, err := queries.NewGetLastBroadcastQuery(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}

	snapshot, err := s.handlers.GetLastBroadcast.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, snapshot)
}

// GetRecommendations handles GET /api/v1/orders/{orderId}/recommendations.
func (s *Server) GetRecommendations(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}

	query, err := queries.NewGetRecommendationsQuery(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}

	resp, err := s.handlers.GetRecommendations.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, recommendations(resp))
}

// PlaceBid handles POST /api/v1/orders/{orderId}/bids.
func (s *Server) PlaceBid(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}

	var req NewBid
	if err = ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	terms, err := req.toTerms()
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewPlaceBidCommand(orderID, terms)
	if err != nil {
		return s.fail(ctx, err)
	}

	result, err := s.handlers.PlaceBid.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, placedBid(result))
}

// CancelMasterOrder handles POST /api/v1/orders/{orderId}/cancel.
func (s *Server) CancelMasterOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewCancelMasterOrderCommand(orderID)
	if err != nil {
		return s.fail(ctx, err)
	}

	snapshot, err := s.handlers.CancelMasterOrder.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, snapshot)
}

// ChangePartialOrder handles POST /api/v1/orders/{orderId}/partials/{partialId}/{action}.
func (s *Server) ChangePartialOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderId")
	if err != nil {
		return s.fail(ctx, err)
	}
	partialID, err := pathUUID(ctx, "partialId")
	if err != nil {
		return s.fail(ctx, err)
	}

	var action string
	if err = bindPathParam(ctx, "action", &action); err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewChangePartialOrderCommand(orderID, partialID, commands.PartialOrderAction(action))
	if err != nil {
		return s.fail(ctx, err)
	}

	snapshot, err := s.handlers.ChangePartialOrder.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, snapshot)
}

// GetFuelSurcharge handles GET /api/v1/oracle/fuel-surcharge.
func (s *Server) GetFuelSurcharge(ctx echo.Context) error {
	surcharge, err := s.handlers.GetFuelSurcharge.Handle(ctx.Request().Context(), queries.NewGetFuelSurchargeQuery())
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, surcharge)
}

// ValidatePrice handles POST /api/v1/oracle/validate-price.
func (s *Server) ValidatePrice(ctx echo.Context) error {
	var req ValidatePriceRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	route, err := req.Route.toDomain()
	if err != nil {
		return s.fail(ctx, err)
	}

	query, err := queries.NewValidatePriceQuery(req.Price, route)
	if err != nil {
		return s.fail(ctx, err)
	}

	assessment, err := s.handlers.ValidatePrice.Handle(ctx.Request().Context(), query)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, priceAssessment(assessment))
}

// ListProviders handles GET /api/v1/admin/providers.
func (s *Server) ListProviders(ctx echo.Context) error {
	providers, err := s.handlers.ListProviders.Handle(ctx.Request().Context(), queries.NewListProvidersQuery())
	if err != nil {
		return s.fail(ctx, err)
	}

	response := make([]Provider, len(providers))
	for i, p := range providers {
		response[i] = listedProvider(p)
	}

	return ctx.JSON(http.StatusOK, response)
}

// RegisterProvider handles POST /api/v1/admin/providers.
func (s *Server) RegisterProvider(ctx echo.Context) error {
	var req ProviderSettings
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	cmd, err := commands.NewRegisterProviderCommand(kernel.NewUUID(), req.toParams(), actorFrom(ctx))
	if err != nil {
		return s.fail(ctx, err)
	}

	p, err := s.handlers.RegisterProvider.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, provider(p))
}

// UpdateProvider handles PUT /api/v1/admin/providers/{providerId}.
func (s *Server) UpdateProvider(ctx echo.Context) error {
	providerID, err := pathUUID(ctx, "providerId")
	if err != nil {
		return s.fail(ctx, err)
	}

	var req ProviderSettings
	if err = ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	cmd, err := commands.NewUpdateProviderCommand(providerID, req.toParams(), actorFrom(ctx))
	if err != nil {
		return s.fail(ctx, err)
	}

	p, err := s.handlers.UpdateProvider.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, provider(p))
}

// DeleteProvider handles DELETE /api/v1/admin/providers/{providerId}.
func (s *Server) DeleteProvider(ctx echo.Context) error {
	providerID, err := pathUUID(ctx, "providerId")
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewDeleteProviderCommand(providerID, actorFrom(ctx))
	if err != nil {
		return s.fail(ctx, err)
	}

	if err = s.handlers.DeleteProvider.Handle(ctx.Request().Context(), cmd); err != nil {
		return s.fail(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// ToggleProvider handles POST /api/v1/admin/providers/{providerId}/toggle.
func (s *Server) ToggleProvider(ctx echo.Context) error {
	return s.adjustProvider(ctx, commands.AdjustToggleEnabled, 0)
}

// ToggleProviderConsensus handles POST /api/v1/admin/providers/{providerId}/consensus.
func (s *Server) ToggleProviderConsensus(ctx echo.Context) error {
	return s.adjustProvider(ctx, commands.AdjustToggleConsensus, 0)
}

// SetProviderPriority handles POST /api/v1/admin/providers/{providerId}/priority.
func (s *Server) SetProviderPriority(ctx echo.Context) error {
	var req PriorityRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	return s.adjustProvider(ctx, commands.AdjustSetPriority, req.Priority)
}

func (s *Server) adjustProvider(ctx echo.Context, adjustment commands.ProviderAdjustment, priority int) error {
	providerID, err := pathUUID(ctx, "providerId")
	if err != nil {
		return s.fail(ctx, err)
	}

	cmd, err := commands.NewAdjustProviderCommand(providerID, adjustment, priority, actorFrom(ctx))
	if err != nil {
		return s.fail(ctx, err)
	}

	p, err := s.handlers.AdjustProvider.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return s.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, provider(p))
}

// bindPathParam decodes a simple-style path parameter the same way
// oapi-codegen's echo wrappers do.
func bindPathParam(ctx echo.Context, name string, dest any) error {
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, ctx.Param(name), dest)
	if err != nil {
		return errs.NewValueIsInvalidErrorWithCause(name, err)
	}
	return nil
}

func pathUUID(ctx echo.Context, name string) (kernel.UUID, error) {
	var raw string
	if err := bindPathParam(ctx, name, &raw); err != nil {
		return kernel.UUID{}, err
	}
	id, err := kernel.UUIDFromString(raw)
	if err != nil {
		return kernel.UUID{}, errs.NewValueIsInvalidErrorWithCause(name, err)
	}
	return id, nil
}

func actorFrom(ctx echo.Context) ports.Actor {
	actor, _ := ctx.Get(actorContextKey).(ports.Actor)
	return actor
}
