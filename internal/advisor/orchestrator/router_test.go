package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"academic-advisor/internal/advisor/cache"
	"academic-advisor/internal/advisor/capability"
	"academic-advisor/internal/advisor/intent"
	"academic-advisor/internal/advisor/synthesis"
	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/common/llm"
	"academic-advisor/internal/common/logger"
	"academic-advisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	prediction models.Prediction
	calls      atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, question string, history []models.Message) models.Prediction {
	f.calls.Add(1)
	return f.prediction
}

type fakeAdapter struct {
	name   string
	label  string
	result *models.CapabilityResult
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) SourceLabel() string { return f.label }

func (f *fakeAdapter) Execute(ctx context.Context, req capability.Request) (*models.CapabilityResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

// fakeLLM serves both the classifier and the synthesizer.
type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeLLM) CompleteNamed(ctx context.Context, req llm.Request) (string, string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", "", f.err
	}
	return f.reply, "openai/gpt-4o-mini", nil
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	text, _, err := f.CompleteNamed(ctx, req)
	return text, err
}

type fakeAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeAlerter) Alert(ctx context.Context, subject, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

type testRouter struct {
	router     *Router
	classifier *fakeClassifier
	llm        *fakeLLM
	retrieval  *fakeAdapter
	graph      *fakeAdapter
	progress   *fakeAdapter
	gpa        *fakeAdapter
	alerter    *fakeAlerter
}

func createTestConfig() Config {
	c := DefaultConfig()
	c.StructuredTimeout = time.Second
	c.RetrievalTimeout = time.Second
	return c
}

func chunksResult(ids ...string) *models.CapabilityResult {
	chunks := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		chunks = append(chunks, models.Chunk{Text: "passage " + id, SourceID: id})
	}
	return &models.CapabilityResult{Payload: chunks, SourceLabel: "Academic Documents", SourceIDs: ids}
}

func newTestRouter(t *testing.T, config Config, prediction models.Prediction) *testRouter {
	t.Helper()
	log := logger.NewTestLogger(t)

	tr := &testRouter{
		classifier: &fakeClassifier{prediction: prediction},
		llm:        &fakeLLM{reply: "Here is what I found."},
		retrieval:  &fakeAdapter{name: "retrieval", label: "Academic Documents", result: chunksResult("doc-1", "doc-2", "doc-3")},
		graph:      &fakeAdapter{name: "graph", label: "Course Graph"},
		progress:   &fakeAdapter{name: "progress", label: "Academic Records"},
		gpa:        &fakeAdapter{name: "gpa", label: "Academic Records"},
		alerter:    &fakeAlerter{},
	}

	tr.router = NewRouter(config, Deps{
		Classifier: tr.classifier,
		Adapters: map[models.Intent]capability.Adapter{
			models.IntentQueryRAG:        tr.retrieval,
			models.IntentGraphQuery:      tr.graph,
			models.IntentAnalyzeProgress: tr.progress,
			models.IntentSimulateGPA:     tr.gpa,
		},
		Synthesizer: synthesis.New(synthesis.Config{Timeout: time.Second}, tr.llm, log),
		Cache:       cache.New(cache.Config{MaxEntries: 100}, nil, log),
		Alerter:     tr.alerter,
	}, log)
	t.Cleanup(tr.router.Wait)
	return tr
}

func predict(i models.Intent, confidence float64) models.Prediction {
	return models.Prediction{Intent: i, Confidence: confidence, Method: models.MethodLLM}
}

func TestRoute_GraduationRequirements(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentQueryRAG, 0.9))

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "What are the graduation requirements?"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Len(t, resp.Citations, 3)
	assert.Equal(t, "Academic Documents + openai/gpt-4o-mini", resp.Source)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.NotEmpty(t, resp.RequestID)
}

func TestRoute_GreetingIsCached(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGeneralChat, 0.95))
	q := models.Query{Question: "hi"}

	first, err := tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.llm.calls.Load())

	second, err := tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.llm.calls.Load())

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, models.IntentGeneralChat, second.Intent)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Zero(t, tr.retrieval.calls.Load())
}

func TestRoute_ConfidenceThreshold(t *testing.T) {
	tests := []struct {
		name           string
		prediction     models.Prediction
		wantIntent     models.Intent
		wantGraphCalls int32
	}{
		{
			name:       "below threshold goes to documents",
			prediction: predict(models.IntentGraphQuery, 0.3),
			wantIntent: models.IntentQueryRAG,
		},
		{
			name:           "at threshold keeps the prediction",
			prediction:     predict(models.IntentGraphQuery, 0.5),
			wantIntent:     models.IntentGraphQuery,
			wantGraphCalls: 1,
		},
		{
			name:       "failed classification is not overridden",
			prediction: models.Prediction{Intent: models.IntentGeneralChat, Method: models.MethodFailed, Failed: true},
			wantIntent: models.IntentGeneralChat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, createTestConfig(), tt.prediction)
			tr.graph.result = &models.CapabilityResult{
				Payload: &models.GraphResult{
					Params:    models.GraphParams{CourseCode: "CS201"},
					Relations: []models.GraphRelation{{CourseCode: "CS201", Skills: []string{"data structures"}}},
				},
				SourceLabel: "Course Graph",
				SourceIDs:   []string{"CS201"},
			}

			resp, err := tr.router.Route(context.Background(), models.Query{Question: "tell me about CS201"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantIntent, resp.Intent)
			assert.Equal(t, tt.prediction.Confidence, resp.Confidence)
			assert.Equal(t, tt.wantGraphCalls, tr.graph.calls.Load())
			assert.NotEmpty(t, resp.Answer)
		})
	}
}

func TestRoute_ClassifierTimeout(t *testing.T) {
	log := logger.NewTestLogger(t)
	slow := &fakeLLM{reply: `{"intent":"graph_query","confidence":0.9}`, delay: time.Second}
	classifier := intent.NewClassifier(intent.Config{Timeout: 20 * time.Millisecond}, slow, log)
	chat := &fakeLLM{reply: "I'm not sure, could you rephrase?"}

	r := NewRouter(createTestConfig(), Deps{
		Classifier:  classifier,
		Adapters:    map[models.Intent]capability.Adapter{},
		Synthesizer: synthesis.New(synthesis.Config{Timeout: time.Second}, chat, log),
		Cache:       cache.New(cache.Config{MaxEntries: 10}, nil, log),
	}, log)

	resp, err := r.Route(context.Background(), models.Query{Question: "xyzzy plugh quux"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentGeneralChat, resp.Intent)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, int32(1), chat.calls.Load())
}

func TestRoute_FallbackToDocumentsOnce(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGraphQuery, 0.8))
	tr.graph.err = errors.Join(capability.ErrUnavailable, errors.New("postgres down"))

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "Which courses teach machine learning?"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Equal(t, int32(1), tr.graph.calls.Load())
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
	assert.Len(t, resp.Citations, 3)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.False(t, resp.Degraded)
}

func TestRoute_UnclassifiedAdapterErrorFallsBack(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentAnalyzeProgress, 0.9))
	tr.progress.err = errors.New("unexpected")

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "how am I doing", UserID: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
}

func TestRoute_MissingAdapterFallsBack(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGraphQuery, 0.8))
	delete(tr.router.deps.Adapters, models.IntentGraphQuery)

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "Which courses teach databases?"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
}

func TestRoute_DegradedWhenEverythingIsDown(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGraphQuery, 0.8))
	tr.graph.err = capability.ErrUnavailable
	tr.retrieval.err = capability.ErrUnavailable
	q := models.Query{Question: "Which courses teach machine learning?"}

	resp, err := tr.router.Route(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Equal(t, synthesis.UnavailableAnswer, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, int32(1), tr.graph.calls.Load())
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
	assert.Zero(t, tr.llm.calls.Load())

	tr.router.Wait()
	assert.Equal(t, 1, tr.alerter.count())

	// Degraded answers are not cached.
	_, err = tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), tr.graph.calls.Load())
}

func TestRoute_DocumentsDownIsNotRetried(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentQueryRAG, 0.9))
	tr.retrieval.err = capability.ErrUnavailable

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "What is the attendance policy?"})
	require.NoError(t, err)

	assert.Equal(t, synthesis.UnavailableAnswer, resp.Answer)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
}

func TestRoute_NoResult(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentAnalyzeProgress, 0.9))
	tr.progress.err = capability.ErrNoResult

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "how many hours left", UserID: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentAnalyzeProgress, resp.Intent)
	assert.Equal(t, synthesis.NoResultAnswer, resp.Answer)
	assert.Equal(t, synthesis.NoResultConfidence, resp.Confidence)
	assert.Equal(t, "Academic Records", resp.Source)
	assert.Zero(t, tr.retrieval.calls.Load())
}

type logEntry struct {
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{})  { l.record(msg, fields) }
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  { l.record(msg, fields) }
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) { l.record(msg, fields) }

func (l *recordingLogger) find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func TestRoute_NoResultIsLogged(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGraphQuery, 0.9))
	tr.graph.err = capability.ErrNoResult
	log := &recordingLogger{}
	tr.router.logger = log

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "which courses teach COBOL"})
	require.NoError(t, err)
	assert.Equal(t, synthesis.NoResultAnswer, resp.Answer)

	entry, ok := log.find("capability found nothing")
	require.True(t, ok)
	assert.Equal(t, string(apperrors.ErrCodeNoResult), entry.fields["errorCode"])
	assert.Equal(t, "graph_query", entry.fields["intent"])
	assert.Equal(t, "Course Graph", entry.fields["source"])
}

func TestRoute_DemoGuard(t *testing.T) {
	tests := []struct {
		name         string
		intent       models.Intent
		query        models.Query
		wantDemo     bool
		wantAdapters int32
	}{
		{
			name:     "demo progress",
			intent:   models.IntentAnalyzeProgress,
			query:    models.Query{Question: "what is my gpa", UserID: "u-1", IsDemo: true},
			wantDemo: true,
		},
		{
			name:     "anonymous progress",
			intent:   models.IntentAnalyzeProgress,
			query:    models.Query{Question: "what is my gpa"},
			wantDemo: true,
		},
		{
			name:     "demo simulation without standing",
			intent:   models.IntentSimulateGPA,
			query:    models.Query{Question: "what if I get A in CS201", IsDemo: true},
			wantDemo: true,
		},
		{
			name:         "demo simulation with explicit standing",
			intent:       models.IntentSimulateGPA,
			query:        models.Query{Question: "my GPA is 3.0 with 60 hours, what if I get A in CS201", IsDemo: true},
			wantAdapters: 1,
		},
		{
			name:         "signed in student",
			intent:       models.IntentAnalyzeProgress,
			query:        models.Query{Question: "what is my gpa", UserID: "u-1"},
			wantAdapters: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, createTestConfig(), predict(tt.intent, 0.9))
			tr.progress.result = &models.CapabilityResult{
				Payload:     &models.ProgressSummary{CurrentGPA: 3.1, GPAScale: 4, CompletedHours: 60, RemainingHours: 70},
				SourceLabel: "Academic Records",
			}
			tr.gpa.result = &models.CapabilityResult{
				Payload:     &models.GpaProjection{CurrentGPA: 3, CurrentHours: 60, ProjectedGPA: 3.05, HoursAdded: 3, TotalHoursAfter: 63},
				SourceLabel: "Academic Records",
			}

			resp, err := tr.router.Route(context.Background(), tt.query)
			require.NoError(t, err)

			assert.Equal(t, tt.intent, resp.Intent)
			assert.Equal(t, tt.wantAdapters, tr.progress.calls.Load()+tr.gpa.calls.Load())
			if tt.wantDemo {
				assert.Equal(t, synthesis.DemoAnswer, resp.Answer)
				assert.Equal(t, synthesis.SourceDemo, resp.Source)
			} else {
				assert.NotEqual(t, synthesis.DemoAnswer, resp.Answer)
			}
		})
	}
}

func TestRoute_PersonalizedAnswersAreScopedPerUser(t *testing.T) {
	config := createTestConfig()
	config.TTLs[models.IntentAnalyzeProgress] = time.Minute
	tr := newTestRouter(t, config, predict(models.IntentAnalyzeProgress, 0.9))
	tr.progress.result = &models.CapabilityResult{
		Payload:     &models.ProgressSummary{CurrentGPA: 3.1, GPAScale: 4},
		SourceLabel: "Academic Records",
	}

	for _, user := range []string{"u-1", "u-2", "u-1"} {
		_, err := tr.router.Route(context.Background(), models.Query{Question: "what is my gpa", UserID: user})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), tr.progress.calls.Load())
}

func TestRoute_FAQAnswersBeforeClassification(t *testing.T) {
	config := createTestConfig()
	config.FAQ = map[string]string{
		"When is the last day to add or drop courses?": "February 20, 2025.",
		"   ": "ignored",
	}
	tr := newTestRouter(t, config, predict(models.IntentGraphQuery, 0.9))

	tests := []struct {
		name     string
		question string
		wantFAQ  bool
	}{
		{name: "exact question", question: "When is the last day to add or drop courses?", wantFAQ: true},
		{name: "case and spacing differ", question: "  when is the LAST day to add or drop   courses? ", wantFAQ: true},
		{name: "other question", question: "When is the last day to withdraw?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tr.classifier.calls.Load()

			resp, err := tr.router.Route(context.Background(), models.Query{Question: tt.question})
			require.NoError(t, err)
			assert.NotEmpty(t, resp.RequestID)

			if tt.wantFAQ {
				assert.Equal(t, "February 20, 2025.", resp.Answer)
				assert.Equal(t, synthesis.SourceFAQ, resp.Source)
				assert.Equal(t, models.IntentQueryRAG, resp.Intent)
				assert.Equal(t, before, tr.classifier.calls.Load())
			} else {
				assert.NotEqual(t, synthesis.SourceFAQ, resp.Source)
				assert.Equal(t, before+1, tr.classifier.calls.Load())
			}
		})
	}
	assert.Zero(t, tr.retrieval.calls.Load())
}

func TestRoute_LowConfidenceMarksFallbackSource(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGraphQuery, 0.3))
	q := models.Query{Question: "What are the prerequisites for CS201?"}

	resp, err := tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, models.IntentQueryRAG, resp.Intent)
	assert.Equal(t, "Academic Documents + openai/gpt-4o-mini"+synthesis.FallbackMarker, resp.Source)

	// The same documents answer, served from cache to a confident request,
	// carries no marker.
	tr.classifier.prediction = predict(models.IntentQueryRAG, 0.9)
	resp, err = tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "Academic Documents + openai/gpt-4o-mini", resp.Source)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
}

func TestRoute_CachedAnswerTakesRequestConfidence(t *testing.T) {
	tests := []struct {
		name           string
		first          models.Prediction
		second         models.Prediction
		fixed          *float64
		wantConfidence float64
	}{
		{
			name:           "overridden prediction then confident documents request",
			first:          predict(models.IntentGraphQuery, 0.3),
			second:         predict(models.IntentQueryRAG, 0.9),
			wantConfidence: 0.9,
		},
		{
			name:           "confident request then low confidence override",
			first:          predict(models.IntentQueryRAG, 0.9),
			second:         predict(models.IntentGraphQuery, 0.2),
			wantConfidence: 0.2,
		},
		{
			name:           "capability confidence is kept",
			first:          predict(models.IntentQueryRAG, 0.9),
			second:         predict(models.IntentQueryRAG, 0.6),
			fixed:          func() *float64 { c := 0.75; return &c }(),
			wantConfidence: 0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, createTestConfig(), tt.first)
			tr.retrieval.result.Confidence = tt.fixed
			q := models.Query{Question: "What is the attendance policy?"}

			_, err := tr.router.Route(context.Background(), q)
			require.NoError(t, err)

			tr.classifier.prediction = tt.second
			resp, err := tr.router.Route(context.Background(), q)
			require.NoError(t, err)

			assert.Equal(t, int32(1), tr.retrieval.calls.Load(), "second request is a cache hit")
			assert.Equal(t, tt.wantConfidence, resp.Confidence)
		})
	}
}

func TestNewRouter_CopiesConfigMaps(t *testing.T) {
	config := createTestConfig()
	config.FAQ = map[string]string{"What is the passing grade?": "C or 60%."}
	r := NewRouter(config, Deps{}, logger.NewNoOpLogger())

	config.TTLs[models.IntentGraphQuery] = 0
	delete(config.TTLs, models.IntentQueryRAG)
	config.FAQ["What is the passing grade?"] = "changed"

	assert.Equal(t, 10*time.Minute, r.config.ttl(models.IntentGraphQuery))
	assert.Equal(t, 5*time.Minute, r.config.ttl(models.IntentQueryRAG))
	assert.Equal(t, "C or 60%.", r.config.FAQ["what is the passing grade?"])
}

func TestRoute_ConcurrentIdenticalRequests(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentQueryRAG, 0.9))
	tr.retrieval.delay = 50 * time.Millisecond
	q := models.Query{Question: "What are the graduation requirements?"}

	const callers = 20
	answers := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := tr.router.Route(context.Background(), q)
			if assert.NoError(t, err) {
				answers[i] = resp.Answer
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
	assert.Equal(t, int32(1), tr.llm.calls.Load())
	for _, a := range answers {
		assert.Equal(t, answers[0], a)
	}
}

func TestRoute_TTLExpiryRecomputes(t *testing.T) {
	config := createTestConfig()
	config.TTLs = map[models.Intent]time.Duration{models.IntentQueryRAG: 30 * time.Millisecond}
	tr := newTestRouter(t, config, predict(models.IntentQueryRAG, 0.9))
	q := models.Query{Question: "What is the attendance policy?"}

	_, err := tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	_, err = tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())

	time.Sleep(60 * time.Millisecond)

	_, err = tr.router.Route(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), tr.retrieval.calls.Load())
}

func TestRoute_ValidationError(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentGeneralChat, 0.95))

	resp, err := tr.router.Route(context.Background(), models.Query{Question: "   "})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, tr.classifier.calls.Load())
}

func TestRoute_CallerGivesUp(t *testing.T) {
	tr := newTestRouter(t, createTestConfig(), predict(models.IntentQueryRAG, 0.9))
	tr.retrieval.delay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp, err := tr.router.Route(ctx, models.Query{Question: "What is the attendance policy?"})
	require.NoError(t, err)
	assert.Equal(t, synthesis.UnavailableAnswer, resp.Answer)

	// The detached computation still completes and is served from cache.
	require.Eventually(t, func() bool { return tr.llm.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	resp, err = tr.router.Route(context.Background(), models.Query{Question: "What is the attendance policy?"})
	require.NoError(t, err)
	assert.Equal(t, "Here is what I found.", resp.Answer)
	assert.Equal(t, int32(1), tr.retrieval.calls.Load())
}

func TestConfigTTL(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 5*time.Minute, c.ttl(models.IntentGeneralChat))
	assert.Zero(t, c.ttl(models.IntentSimulateGPA))

	c.TTLs = map[models.Intent]time.Duration{}
	assert.Equal(t, c.DefaultTTL, c.ttl(models.IntentGraphQuery))
}
