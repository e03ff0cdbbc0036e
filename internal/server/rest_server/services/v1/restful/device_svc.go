package restful

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/api_response"
	"github.com/okieraised/power-alert-relay/internal/catalog"
	"github.com/okieraised/power-alert-relay/internal/cerrors"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/store"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type IDeviceService interface {
	Register(ctx *gin.Context, input *RegisterDeviceInput) (*api_response.BaseOutput, *cerrors.AppError)
	Get(ctx *gin.Context, input *DeviceTokenInput) (*api_response.BaseOutput, *cerrors.AppError)
	Unregister(ctx *gin.Context, input *DeviceTokenInput) (*api_response.BaseOutput, *cerrors.AppError)
}

// RecipientLocker serializes registration writes with in-flight alert deliveries.
type RecipientLocker interface {
	Lock(token string) func()
}

type noLocker struct{}

func (noLocker) Lock(string) func() { return func() {} }

type DeviceService struct {
	store       store.RecipientStore
	catalog     *catalog.Catalog
	locker      RecipientLocker
	callTimeout time.Duration
	logger      *log.Logger
}

func NewDeviceService(options ...func(*DeviceService)) *DeviceService {
	svc := &DeviceService{
		locker:      noLocker{},
		callTimeout: constants.DefaultRouterCallTimeout,
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("device_service")
	return svc
}

func WithRecipientStore(s store.RecipientStore) func(*DeviceService) {
	return func(svc *DeviceService) {
		svc.store = s
	}
}

func WithCatalog(c *catalog.Catalog) func(*DeviceService) {
	return func(svc *DeviceService) {
		svc.catalog = c
	}
}

func WithRecipientLocker(l RecipientLocker) func(*DeviceService) {
	return func(svc *DeviceService) {
		if l != nil {
			svc.locker = l
		}
	}
}

func WithStoreTimeout(d time.Duration) func(*DeviceService) {
	return func(svc *DeviceService) {
		if d > 0 {
			svc.callTimeout = d
		}
	}
}

type RegisterDeviceInput struct {
	TracerCtx    context.Context
	Tracer       trace.Tracer
	Registration models.Registration
}

type DeviceTokenInput struct {
	TracerCtx context.Context
	Tracer    trace.Tracer
	Token     string
}

func (svc *DeviceService) Register(ctx *gin.Context, input *RegisterDeviceInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "register-device-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		log.Recipient(input.Registration.Token),
	)

	reg := input.Registration
	for topic := range reg.Topics {
		if _, ok := svc.catalog.Lookup(topic); !ok {
			return nil, cerrors.ErrUnknownAlertTopic.WithMessage("unknown alert topic: %s", topic)
		}
	}

	_, cSpan := input.Tracer.Start(rootCtx, "upsert-recipient")
	unlock := svc.locker.Lock(reg.Token)
	sctx, cancel := context.WithTimeout(ctx.Request.Context(), svc.callTimeout)
	rec, err := svc.store.UpsertOnRegister(sctx, reg, svc.catalog.DefaultBounds)
	cancel()
	unlock()
	cSpan.End()
	if err != nil {
		wErr := errors.Wrap(err, "failed to register device")
		lg.Error(wErr.Error())
		return nil, cerrors.ErrRecipientStoreFailed.WithCause(wErr)
	}

	lg.Info("Device registered", zap.Int("topics", len(rec.Topics)))
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    rec,
	}, nil
}

func (svc *DeviceService) Get(ctx *gin.Context, input *DeviceTokenInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-device-handler")
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx.Request.Context(), svc.callTimeout)
	defer cancel()
	rec, err := svc.store.Get(sctx, input.Token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cerrors.ErrRecipientNotFound
	}
	if err != nil {
		wErr := errors.Wrap(err, "failed to load device")
		svc.logger.Error(wErr.Error(), zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)))
		return nil, cerrors.ErrRecipientStoreFailed.WithCause(wErr)
	}

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    rec,
	}, nil
}

func (svc *DeviceService) Unregister(ctx *gin.Context, input *DeviceTokenInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "unregister-device-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
		log.Recipient(input.Token),
	)

	unlock := svc.locker.Lock(input.Token)
	defer unlock()

	sctx, cancel := context.WithTimeout(ctx.Request.Context(), svc.callTimeout)
	defer cancel()
	if _, err := svc.store.Get(sctx, input.Token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, cerrors.ErrRecipientNotFound
		}
		wErr := errors.Wrap(err, "failed to load device")
		lg.Error(wErr.Error())
		return nil, cerrors.ErrRecipientStoreFailed.WithCause(wErr)
	}
	if err := svc.store.DeleteByToken(sctx, input.Token); err != nil {
		wErr := errors.Wrap(err, "failed to unregister device")
		lg.Error(wErr.Error())
		return nil, cerrors.ErrRecipientStoreFailed.WithCause(wErr)
	}

	lg.Info("Device unregistered")
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
	}, nil
}
