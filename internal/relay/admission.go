package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/ytget/relay-bot/internal/metrics"
	"github.com/ytget/relay-bot/internal/model"
	"github.com/ytget/relay-bot/internal/platform"
)

// AdmitRequest is a candidate task
type AdmitRequest struct {
	UserID int64
	URL    string
	Lang   string
	// Status is the message that will carry progress for the task
	Status model.MessageRef
}

// AdmissionConfig holds the admission policy
type AdmissionConfig struct {
	// ChannelID is the channel users must belong to; empty disables the check
	ChannelID string
	Cooldown  time.Duration
}

// Admission decides whether a request may start a task
type Admission struct {
	rt         *Runtime
	membership MembershipChecker
	cfg        AdmissionConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAdmission creates an admission controller
func NewAdmission(rt *Runtime, membership MembershipChecker, cfg AdmissionConfig, logger *slog.Logger, m *metrics.Metrics) *Admission {
	return &Admission{
		rt:         rt,
		membership: membership,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// TryAdmit runs the admission checks in order and, on success, sets the
// user's cooldown and registers the returned record. Rejections are
// returned as *Rejection.
func (a *Admission) TryAdmit(ctx context.Context, req AdmitRequest, now time.Time) (*model.TaskRecord, error) {
	rec, err := a.tryAdmit(ctx, req, now)
	if err != nil {
		if rej, ok := AsRejection(err); ok {
			a.metrics.ObserveAdmission(string(rej.Reason))
			a.logger.Debug("admission rejected", "user_id", req.UserID, "reason", rej.Reason)
		}
		return nil, err
	}
	a.metrics.ObserveAdmission(metrics.AdmissionAdmitted)
	a.metrics.SetActiveTasks(a.rt.Registry.Len())
	a.logger.Info("task admitted", "user_id", req.UserID, "task_id", rec.ID)
	return rec, nil
}

func (a *Admission) tryAdmit(ctx context.Context, req AdmitRequest, now time.Time) (*model.TaskRecord, error) {
	if a.rt.ShuttingDown() {
		return nil, &Rejection{Reason: ReasonShuttingDown}
	}
	if !platform.IsSupported(req.URL) {
		return nil, &Rejection{Reason: ReasonInvalidURL}
	}
	if remaining := a.rt.Cooldowns.Remaining(req.UserID, now); remaining > 0 {
		return nil, &Rejection{Reason: ReasonCooldown, Remaining: remaining}
	}
	if a.cfg.ChannelID != "" && !a.isMember(ctx, req.UserID) {
		return nil, &Rejection{Reason: ReasonMembershipRequired}
	}

	a.rt.admitMu.Lock()
	defer a.rt.admitMu.Unlock()

	// State may have changed while membership was being checked
	if a.rt.ShuttingDown() {
		return nil, &Rejection{Reason: ReasonShuttingDown}
	}
	if remaining := a.rt.Cooldowns.Remaining(req.UserID, now); remaining > 0 {
		return nil, &Rejection{Reason: ReasonCooldown, Remaining: remaining}
	}
	if _, running := a.rt.Registry.Lookup(req.UserID); running {
		return nil, &Rejection{Reason: ReasonTaskInProgress}
	}

	rec := model.NewTaskRecord(req.UserID, req.Status, req.URL, req.Lang, now)
	if err := a.rt.Registry.Register(rec); err != nil {
		return nil, &Rejection{Reason: ReasonTaskInProgress}
	}
	a.rt.Cooldowns.Set(req.UserID, now.Add(a.cfg.Cooldown))
	return rec, nil
}

// isMember fails closed: lookup errors count as not a member
func (a *Admission) isMember(ctx context.Context, userID int64) bool {
	status, err := a.membership.GetMembership(ctx, a.cfg.ChannelID, userID)
	if err != nil {
		a.logger.Warn("membership check failed, treating as not a member",
			"user_id", userID, "channel", a.cfg.ChannelID, "error", err)
		return false
	}
	return status.Active()
}
