package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-starter/internal/jobs"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/mail"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// sentMarkerTTL bounds how long a delivered welcome mail is remembered.
const sentMarkerTTL = 7 * 24 * time.Hour

// TemplateSender renders and sends templated mail.
type TemplateSender interface {
	SendTemplate(ctx context.Context, msg mail.Message, name string, data any) error
}

// Markers records which deliveries already happened.
type Markers interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// WelcomeMailJob delivers welcome mails at most once per user.
type WelcomeMailJob struct {
	Mailer  TemplateSender
	Markers Markers
	Project string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskWelcomeMail tasks.
func (j *WelcomeMailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("welcome mail: handler not configured")
	}
	var payload WelcomePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("welcome mail: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" {
		return fmt.Errorf("welcome mail: empty recipient: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskWelcomeMail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("user_id", payload.UserID))
	key := "jobs:welcome:" + strconv.FormatInt(payload.UserID, 10)
	if j.Markers != nil {
		fresh, err := j.Markers.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), sentMarkerTTL)
		if err != nil {
			resultErr = err
			logger.Error("claim welcome marker", slog.Any("error", err))
			return resultErr
		}
		if !fresh {
			j.metrics().Skipped(TaskWelcomeMail)
			logger.Info("welcome mail already sent")
			return nil
		}
	}

	err := j.Mailer.SendTemplate(ctx, mail.Message{
		To:      []string{payload.Email},
		Subject: "Welcome to " + j.Project,
	}, "welcome.html", map[string]string{
		"Username": payload.Username,
		"FullName": payload.FullName,
		"Project":  j.Project,
	})
	if err != nil {
		if j.Markers != nil {
			if _, derr := j.Markers.Delete(ctx, key); derr != nil {
				logger.Warn("release welcome marker", slog.Any("error", derr))
			}
		}
		resultErr = err
		logger.Error("send welcome mail", slog.Any("error", err))
		return resultErr
	}
	logger.Info("welcome mail sent")
	return resultErr
}

func (j *WelcomeMailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWelcomeMail))
	}
	return slog.Default().With(slog.String("job", TaskWelcomeMail))
}

func (j *WelcomeMailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
