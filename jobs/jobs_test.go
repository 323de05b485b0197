package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-starter/internal/jobs"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/mail"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

type fakeSender struct {
	sent []mail.Message
	data []any
	err  error
}

func (f *fakeSender) SendTemplate(_ context.Context, msg mail.Message, name string, data any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	f.data = append(f.data, data)
	return nil
}

func newWelcomeJob(t *testing.T, sender *fakeSender) (*WelcomeMailJob, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.New(context.Background(), cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &WelcomeMailJob{
		Mailer:  sender,
		Markers: cache.NewCache(client, ""),
		Project: "Starter",
		Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()),
	}, mr
}

func welcomeTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewWelcomeTask(WelcomePayload{UserID: 7, Email: "alice@example.com", Username: "alice", FullName: "Alice A"})
	require.NoError(t, err)
	return task
}

func TestWelcomeMailSentOnce(t *testing.T) {
	sender := &fakeSender{}
	job, mr := newWelcomeJob(t, sender)

	require.NoError(t, job.Handle(context.Background(), welcomeTask(t)))
	require.NoError(t, job.Handle(context.Background(), welcomeTask(t)))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, sender.sent[0].To)
	assert.Equal(t, "Welcome to Starter", sender.sent[0].Subject)
	assert.True(t, mr.Exists("jobs:welcome:7"))
}

func TestWelcomeMailFailureReleasesMarker(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	job, mr := newWelcomeJob(t, sender)

	err := job.Handle(context.Background(), welcomeTask(t))
	require.Error(t, err)
	assert.False(t, mr.Exists("jobs:welcome:7"))

	sender.err = nil
	require.NoError(t, job.Handle(context.Background(), welcomeTask(t)))
	assert.Len(t, sender.sent, 1)
}

func TestWelcomeMailRejectsBadPayload(t *testing.T) {
	job, _ := newWelcomeJob(t, &fakeSender{})

	err := job.Handle(context.Background(), asynq.NewTask(TaskWelcomeMail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	raw, _ := json.Marshal(WelcomePayload{UserID: 1})
	err = job.Handle(context.Background(), asynq.NewTask(TaskWelcomeMail, raw))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueueWelcome(t *testing.T) {
	fake := &fakeEnqueuer{}
	c := &Client{client: fake}

	var notifier users.WelcomeNotifier = c
	require.NoError(t, notifier.EnqueueWelcome(context.Background(), users.UserResponse{ID: 3, Username: "bob", Email: "bob@example.com"}))

	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskWelcomeMail, fake.tasks[0].Type())
	var payload WelcomePayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &payload))
	assert.Equal(t, WelcomePayload{UserID: 3, Email: "bob@example.com", Username: "bob"}, payload)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}
