// Package campaign drives a campaign through create, fund and launch. The backend exposes
// these as three separate calls with no transaction, so the sequence is modelled as explicit
// stages that can be resumed after a partial failure.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/logging"
)

// Stage is how far a campaign got through the lifecycle.
type Stage int

const (
	Created Stage = iota + 1
	Funded
	Launched
	// FailedAfterCreated marks a Result whose sequence stopped after creation. The
	// accompanying PartialError says how far it got.
	FailedAfterCreated
)

func (s Stage) String() string {
	switch s {
	case Created:
		return "created"
	case Funded:
		return "funded"
	case Launched:
		return "launched"
	case FailedAfterCreated:
		return "failed_after_created"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText renders the stage name in JSON payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageFromStatus maps a backend status onto a stage. Unknown statuses map to Created.
func StageFromStatus(status string) Stage {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case api.StatusFunded:
		return Funded
	case api.StatusActive, api.StatusLaunched:
		return Launched
	default:
		return Created
	}
}

// Backend is the subset of the API client the lifecycle needs.
type Backend interface {
	CreateCampaign(ctx context.Context, req api.CampaignRequest) (*api.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*api.Campaign, error)
	FundCampaign(ctx context.Context, id string, amount float64) (*api.Campaign, error)
	LaunchCampaign(ctx context.Context, id string) (*api.Campaign, error)
}

var _ Backend = (*api.Client)(nil)

// ErrNoAmount is returned when funding is needed but neither an amount nor a stored escrow is known.
var ErrNoAmount = errors.New("campaign: funding amount is required")

// Result is the campaign as last seen plus the stage it reached.
type Result struct {
	Campaign *api.Campaign `json:"campaign"`
	Stage    Stage         `json:"stage"`
}

// PartialError means the campaign exists but a later step failed. Nothing is rolled back.
type PartialError struct {
	CampaignID string
	Stage      Stage
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("campaign %s stopped at stage %s: %v", e.CampaignID, e.Stage, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// UserMessage tells the user the campaign was saved and how far it got.
func (e *PartialError) UserMessage() string {
	switch e.Stage {
	case Funded:
		return "Your campaign was created and funded, but launching it failed. You can launch it later from the campaign page."
	default:
		return "Your campaign was created, but funding it failed. You can complete funding later from the campaign page."
	}
}

// Launcher runs the lifecycle against a Backend.
type Launcher struct {
	Backend Backend
	Logger  *zap.Logger
}

// NewLauncher returns a Launcher with a no-op logger when l is nil.
func NewLauncher(b Backend, l *zap.Logger) *Launcher {
	return &Launcher{Backend: b, Logger: logging.OrNop(l)}
}

func (l *Launcher) logger() *zap.Logger {
	return logging.OrNop(l.Logger)
}

func logf(progress func(string, ...any), format string, args ...any) {
	if progress != nil {
		progress(format, args...)
	}
}

// Create creates the campaign and, when launch is set, funds its escrow and launches it.
func (l *Launcher) Create(ctx context.Context, req api.CampaignRequest, launch bool, progress func(string, ...any)) (Result, error) {
	logf(progress, "⏳ Creating campaign %q...\n", req.Name)
	c, err := l.Backend.CreateCampaign(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("create campaign: %w", err)
	}
	id := c.ID.String()
	logf(progress, "✅ Campaign created (ID: %s)\n", id)
	l.logger().Info("campaign created", zap.String("campaign_id", id), zap.Bool("launch", launch))

	res := Result{Campaign: c, Stage: StageFromStatus(c.Status)}
	if !launch {
		return res, nil
	}
	return l.advance(ctx, res, req.EscrowAmount, progress)
}

// CompleteFunding resumes an interrupted sequence from whatever stage the backend reports.
// A zero amount falls back to the campaign's stored escrow amount.
func (l *Launcher) CompleteFunding(ctx context.Context, id string, amount float64, progress func(string, ...any)) (Result, error) {
	c, err := l.Backend.GetCampaign(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("get campaign %s: %w", id, err)
	}
	res := Result{Campaign: c, Stage: StageFromStatus(c.Status)}
	logf(progress, "ℹ️  Campaign %s is %s\n", id, res.Stage)
	if amount <= 0 {
		amount = c.EscrowAmount
	}
	return l.advance(ctx, res, amount, progress)
}

func (l *Launcher) advance(ctx context.Context, res Result, amount float64, progress func(string, ...any)) (Result, error) {
	id := res.Campaign.ID.String()

	if res.Stage == Created {
		if amount <= 0 {
			return failed(res), &PartialError{CampaignID: id, Stage: Created, Err: ErrNoAmount}
		}
		logf(progress, "⏳ Funding escrow with %.2f...\n", amount)
		c, err := l.Backend.FundCampaign(ctx, id, amount)
		if err != nil {
			l.logger().Warn("campaign funding failed", zap.String("campaign_id", id), zap.Error(err))
			return failed(res), &PartialError{CampaignID: id, Stage: Created, Err: fmt.Errorf("fund campaign: %w", err)}
		}
		res = Result{Campaign: c, Stage: Funded}
		logf(progress, "✅ Escrow funded\n")
	}

	if res.Stage == Funded {
		logf(progress, "⏳ Launching campaign...\n")
		c, err := l.Backend.LaunchCampaign(ctx, id)
		if err != nil {
			l.logger().Warn("campaign launch failed", zap.String("campaign_id", id), zap.Error(err))
			return failed(res), &PartialError{CampaignID: id, Stage: Funded, Err: fmt.Errorf("launch campaign: %w", err)}
		}
		res = Result{Campaign: c, Stage: Launched}
		logf(progress, "✅ Campaign launched\n")
		l.logger().Info("campaign launched", zap.String("campaign_id", id))
	}

	return res, nil
}

func failed(res Result) Result {
	return Result{Campaign: res.Campaign, Stage: FailedAfterCreated}
}
