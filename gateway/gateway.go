// Package gateway 是交易协议的边界：校验调用者身份与请求字段，然后转交 Ledger。
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/events"
	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	PickupGrace          time.Duration
	RequireVerifiedBuyer bool
	ServiceName          string
	Now                  func() time.Time
}

type Gateway struct {
	repo   *db.Repo
	events events.Publisher
	log    *logger.Logger
	opts   Options
	tracer trace.Tracer
}

func New(repo *db.Repo, pub events.Publisher, log *logger.Logger, opts Options) *Gateway {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Gateway{
		repo:   repo,
		events: pub,
		log:    log.With("component", "gateway"),
		opts:   opts,
		tracer: otel.Tracer("marketplace/gateway"),
	}
}

// Create 买方请求物品
func (g *Gateway) Create(ctx context.Context, actorID, itemID string) (t *models.Transaction, err error) {
	ctx, span := g.start(ctx, models.ActionCreate, attribute.String("item.id", itemID))
	defer func() { g.end(span, err) }()

	if g.opts.RequireVerifiedBuyer {
		u, err := g.repo.FindUserByID(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !u.IsVerified {
			return nil, fmt.Errorf("buyer identity not verified: %w", models.ErrForbidden)
		}
	}
	t, err = g.repo.CreateTransaction(ctx, itemID, actorID)
	if err != nil {
		return nil, err
	}
	g.log.Info("transaction created", "transaction", t.ID, "item", itemID, "actor_id", actorID)
	g.publish(ctx, t, &models.AuditEntry{Action: models.ActionCreate, ToStatus: t.Status, ActorID: actorID})
	return t, nil
}

type ProposeInput struct {
	PickupAt       time.Time
	PickupLocation string
}

// Propose 卖方提出取货时间与地点
func (g *Gateway) Propose(ctx context.Context, actorID, txID string, in ProposeInput) (*models.Transaction, error) {
	loc := strings.TrimSpace(in.PickupLocation)
	validate := func() error {
		if loc == "" {
			return models.Invalid("pickup_location", "required")
		}
		if in.PickupAt.IsZero() {
			return models.Invalid("pickup_at", "required")
		}
		if earliest := g.opts.Now().Add(g.opts.PickupGrace); !in.PickupAt.After(earliest) {
			return models.Invalid("pickup_at", fmt.Sprintf("must be later than %s", earliest.UTC().Format(time.RFC3339)))
		}
		return nil
	}
	at := in.PickupAt.UTC()
	notes := fmt.Sprintf("pickup %s at %s", at.Format(time.RFC3339), loc)
	return g.transition(ctx, actorID, txID, models.ActionPropose, validate, &notes, func(t *models.Transaction) {
		t.PickupAt = &at
		t.PickupLocation = loc
	})
}

// Dispute 任一方在非终态下发起争议
func (g *Gateway) Dispute(ctx context.Context, actorID, txID, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	validate := func() error {
		if reason == "" {
			return models.Invalid("reason", "required")
		}
		return nil
	}
	return g.transition(ctx, actorID, txID, models.ActionDispute, validate, &reason, func(t *models.Transaction) {
		t.DisputeReason = reason
	})
}

// Act 执行不带参数的操作：reject、confirm、handover、complete、return、cancel 等
func (g *Gateway) Act(ctx context.Context, actorID, txID string, a models.Action) (*models.Transaction, error) {
	switch a {
	case models.ActionCreate, models.ActionPropose, models.ActionDispute:
		return nil, fmt.Errorf("%s requires its own request payload: %w", a, models.ErrValidation)
	}
	if _, ok := models.LookupRule(a); !ok {
		return nil, fmt.Errorf("unknown action %q: %w", a, models.ErrValidation)
	}
	return g.transition(ctx, actorID, txID, a, nil, nil, nil)
}

func (g *Gateway) transition(
	ctx context.Context,
	actorID, txID string,
	a models.Action,
	validate func() error,
	notes *string,
	apply func(*models.Transaction),
) (out *models.Transaction, err error) {
	ctx, span := g.start(ctx, a, attribute.String("transaction.id", txID))
	defer func() { g.end(span, err) }()

	cur, err := g.repo.FindTransactionByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if err := authorize(cur, actorID, a); err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(); err != nil {
			return nil, err
		}
	}

	out, entry, err := g.repo.Transition(ctx, db.TransitionInput{
		TransactionID: txID,
		ActorID:       actorID,
		Action:        a,
		Notes:         notes,
		Apply:         apply,
	})
	if err != nil {
		return nil, err
	}
	g.log.Info("transaction transitioned",
		"transaction", out.ID, "action", a, "from", entry.FromStatus, "to", entry.ToStatus, "actor_id", actorID)
	g.publish(ctx, out, entry)
	return out, nil
}

// Authorize 只做存在性和身份检查，不改状态；请求体无法解析时用它保持 404/403 优先
func (g *Gateway) Authorize(ctx context.Context, actorID, txID string, a models.Action) error {
	cur, err := g.repo.FindTransactionByID(ctx, txID)
	if err != nil {
		return err
	}
	return authorize(cur, actorID, a)
}

// authorize 根据转移表的 Actor 列判断调用者
func authorize(t *models.Transaction, actorID string, a models.Action) error {
	role, ok := t.RoleOf(actorID)
	if !ok {
		return fmt.Errorf("actor is not a party to transaction %s: %w", t.ID, models.ErrForbidden)
	}
	rule, ok := models.LookupRule(a)
	if !ok || !rule.Allows(role) {
		return fmt.Errorf("%s may not %s: %w", role, a, models.ErrForbidden)
	}
	return nil
}

// Get 返回交易及调用者当前可执行的操作
func (g *Gateway) Get(ctx context.Context, actorID, txID string) (*models.Transaction, []models.Action, error) {
	t, err := g.repo.FindTransactionByID(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	role, ok := t.RoleOf(actorID)
	if !ok {
		return nil, nil, fmt.Errorf("transaction %s: %w", txID, models.ErrForbidden)
	}
	return t, t.AllowedActions(role), nil
}

// Audit 只对交易双方开放
func (g *Gateway) Audit(ctx context.Context, actorID, txID string) ([]models.AuditEntry, error) {
	t, err := g.repo.FindTransactionByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if _, ok := t.RoleOf(actorID); !ok {
		return nil, fmt.Errorf("transaction %s: %w", txID, models.ErrForbidden)
	}
	return g.repo.ListAudit(ctx, txID)
}

func (g *Gateway) Mine(ctx context.Context, actorID string) (asBuyer, asSeller []models.Transaction, err error) {
	return g.repo.ListMine(ctx, actorID)
}

func (g *Gateway) publish(ctx context.Context, t *models.Transaction, e *models.AuditEntry) {
	env := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventTransactionTransitioned,
		EventVersion:  events.EventVersion,
		OccurredAt:    g.opts.Now().UTC(),
		Producer:      g.opts.ServiceName,
		CorrelationID: t.ID,
		Payload: events.MustMarshal(events.TransitionedPayload{
			TransactionID:   t.ID,
			ItemID:          t.ItemID,
			BuyerID:         t.BuyerID,
			SellerID:        t.SellerID,
			TransactionType: t.TransactionType,
			Action:          e.Action,
			FromStatus:      e.FromStatus,
			ToStatus:        e.ToStatus,
			ActorID:         e.ActorID,
			DisputeReason:   t.DisputeReason,
		}),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	g.events.Publish(events.PartitionKey(t.ID), events.MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(events.EventTransactionTransitioned)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (g *Gateway) start(ctx context.Context, a models.Action, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := g.tracer.Start(ctx, "transaction."+string(a))
	span.SetAttributes(attrs...)
	return ctx, span
}

func (g *Gateway) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
