package enrichment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// fakeRecordStore returns a scripted sequence of analyzed-content values.
type fakeRecordStore struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeRecordStore) Create(ctx context.Context, rec *domain.AssistantRecord) error { return nil }
func (f *fakeRecordStore) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return nil
}

func (f *fakeRecordStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AssistantRecord, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	content := ""
	if idx < len(f.responses) {
		content = f.responses[idx]
	} else if len(f.responses) > 0 {
		content = f.responses[len(f.responses)-1]
	}
	return &domain.AssistantRecord{ID: id, AnalyzedFileContent: content}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPoller(store *fakeRecordStore, attempts int) *Poller {
	p := NewPoller(store, testLogger(), attempts, time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestAwait_ContentOnSecondPoll(t *testing.T) {
	store := &fakeRecordStore{responses: []string{
		`{"state":"loading"}`,
		"the fully analyzed file content summary",
	}}
	p := newTestPoller(store, 30)

	content, ok, err := p.Await(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "the fully analyzed file content summary", content)
	assert.Equal(t, 2, store.calls)
}

func TestAwait_BudgetExhaustedIsNotAnError(t *testing.T) {
	store := &fakeRecordStore{responses: []string{`{"state":"loading"}`}}
	p := newTestPoller(store, 30)

	content, ok, err := p.Await(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, content)
	assert.Equal(t, 30, store.calls)
}

func TestAwait_FetchErrorsConsumeBudgetWithoutAborting(t *testing.T) {
	store := &fakeRecordStore{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []string{"", "derived knowledge from the attached documents"},
	}
	p := newTestPoller(store, 30)

	content, ok, err := p.Await(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "derived knowledge from the attached documents", content)
	assert.Equal(t, 2, store.calls)
}

func TestAwait_JSONFragmentArray(t *testing.T) {
	store := &fakeRecordStore{responses: []string{
		`[{"text":"first extracted paragraph"},{"text":"second extracted paragraph"}]`,
	}}
	p := newTestPoller(store, 5)

	content, ok, err := p.Await(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first extracted paragraph\nsecond extracted paragraph", content)
}

func TestAwait_ContextCancellationAborts(t *testing.T) {
	store := &fakeRecordStore{responses: []string{`{"state":"loading"}`}}
	p := NewPoller(store, testLogger(), 30, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := p.Await(ctx, uuid.New())
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
