package service

import (
	"context"
	"fmt"
	"os"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

type fakeCatalog struct {
	quizzes map[uint]*model.Quiz
}

func (f *fakeCatalog) FindWithQuestions(id uint) (*model.Quiz, error) {
	q, ok := f.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return q, nil
}

func (f *fakeCatalog) ListRequired(courseID uint) ([]model.Quiz, error) {
	var out []model.Quiz
	for _, q := range f.quizzes {
		if q.CourseID == courseID && q.Required && q.IsPublished {
			out = append(out, *q)
		}
	}
	return out, nil
}

type fakeAttemptStore struct {
	nextID   uint
	attempts map[uint]*model.Attempt
	answers  map[uint][]model.Answer
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: map[uint]*model.Attempt{},
		answers:  map[uint][]model.Answer{},
	}
}

func (f *fakeAttemptStore) Create(attempt *model.Attempt) error {
	f.nextID++
	attempt.ID = f.nextID
	stored := *attempt
	f.attempts[attempt.ID] = &stored
	return nil
}

func (f *fakeAttemptStore) FindByID(id uint) (*model.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAttemptStore) FindWithAnswers(id uint) (*model.Attempt, error) {
	a, err := f.FindByID(id)
	if err != nil {
		return nil, err
	}
	a.Answers = f.answers[id]
	return a, nil
}

func (f *fakeAttemptStore) CountByQuizAndLearner(quizID, learnerID uint) (int64, error) {
	var n int64
	for _, a := range f.attempts {
		if a.QuizID == quizID && a.LearnerID == learnerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttemptStore) SaveGraded(attempt *model.Attempt, answers []model.Answer) error {
	existing, ok := f.attempts[attempt.ID]
	if !ok || existing.Status != model.AttemptInProgress {
		return util.ErrAttemptGraded
	}
	stored := *attempt
	f.attempts[attempt.ID] = &stored
	f.answers[attempt.ID] = answers
	return nil
}

func (f *fakeAttemptStore) Delete(id uint) error {
	delete(f.attempts, id)
	return nil
}

func (f *fakeAttemptStore) ListOverdueInProgress(now time.Time) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.Status == model.AttemptInProgress && a.Deadline != nil && !a.Deadline.After(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) ListStaleInProgress(cutoff time.Time) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.Status == model.AttemptInProgress && a.Deadline == nil && !a.StartedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	active    map[string]uint
	snapshots map[uint]*model.Quiz
	drafts    map[uint]map[uint]model.AnswerValue
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		active:    map[string]uint{},
		snapshots: map[uint]*model.Quiz{},
		drafts:    map[uint]map[uint]model.AnswerValue{},
	}
}

func (f *fakeSessionStore) AcquireActive(ctx context.Context, quizID, learnerID, attemptID uint, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%d:%d", quizID, learnerID)
	if _, held := f.active[key]; held {
		return false, nil
	}
	f.active[key] = attemptID
	return true, nil
}

func (f *fakeSessionStore) ReleaseActive(ctx context.Context, quizID, learnerID uint) error {
	delete(f.active, fmt.Sprintf("%d:%d", quizID, learnerID))
	return nil
}

func (f *fakeSessionStore) SaveSnapshot(ctx context.Context, attemptID uint, quiz *model.Quiz, ttl time.Duration) error {
	copied := *quiz
	copied.Questions = append([]model.Question(nil), quiz.Questions...)
	f.snapshots[attemptID] = &copied
	return nil
}

func (f *fakeSessionStore) GetSnapshot(ctx context.Context, attemptID uint) (*model.Quiz, error) {
	return f.snapshots[attemptID], nil
}

func (f *fakeSessionStore) SaveDraft(ctx context.Context, attemptID, questionID uint, value model.AnswerValue) error {
	if f.drafts[attemptID] == nil {
		f.drafts[attemptID] = map[uint]model.AnswerValue{}
	}
	f.drafts[attemptID][questionID] = value
	return nil
}

func (f *fakeSessionStore) GetDrafts(ctx context.Context, attemptID uint) (map[uint]model.AnswerValue, error) {
	out := map[uint]model.AnswerValue{}
	for k, v := range f.drafts[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSessionStore) ClearSession(ctx context.Context, attemptID uint) error {
	delete(f.snapshots, attemptID)
	delete(f.drafts, attemptID)
	return nil
}

func testQuiz() *model.Quiz {
	return &model.Quiz{
		BaseModel:    model.BaseModel{ID: 1},
		CourseID:     7,
		Title:        "chapter review",
		PassingScore: 70,
		IsPublished:  true,
		Questions: []model.Question{
			mcQuestion(1, "B", 10, 1),
			matchingQuestion(2, []string{"x", "y"}, 10, 2),
		},
	}
}

func newSessionFixture(quiz *model.Quiz) (*SessionService, *fakeAttemptStore, *fakeSessionStore) {
	attempts := newFakeAttemptStore()
	store := newFakeSessionStore()
	catalog := &fakeCatalog{quizzes: map[uint]*model.Quiz{}}
	if quiz != nil {
		catalog.quizzes[quiz.ID] = quiz
	}
	svc := NewSessionService(catalog, attempts, store, config.AssessmentConfig{
		SessionTTLMinutes: 120,
		MatchingPenalty:   1.0,
	})
	return svc, attempts, store
}

func TestStartAttempt(t *testing.T) {
	svc, attempts, _ := newSessionFixture(testQuiz())

	view, err := svc.StartAttempt(context.Background(), 1, 42)
	require.NoError(t, err)

	assert.Equal(t, uint(1), view.QuizID)
	assert.Equal(t, 1, view.AttemptNumber)
	assert.Equal(t, model.AttemptInProgress, view.Status)
	assert.Len(t, view.Questions, 2)
	assert.Nil(t, view.Deadline)
	assert.Len(t, attempts.attempts, 1)
}

func TestStartAttemptRejectsConcurrentSession(t *testing.T) {
	svc, attempts, _ := newSessionFixture(testQuiz())

	_, err := svc.StartAttempt(context.Background(), 1, 42)
	require.NoError(t, err)

	_, err = svc.StartAttempt(context.Background(), 1, 42)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)

	// 冲突方创建的记录被回收，只留下第一个会话
	assert.Len(t, attempts.attempts, 1)
}

func TestStartAttemptDifferentLearnersIndependent(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())

	_, err := svc.StartAttempt(context.Background(), 1, 42)
	require.NoError(t, err)
	_, err = svc.StartAttempt(context.Background(), 1, 43)
	assert.NoError(t, err)
}

func TestStartAttemptUnpublishedQuiz(t *testing.T) {
	quiz := testQuiz()
	quiz.IsPublished = false
	svc, _, _ := newSessionFixture(quiz)

	_, err := svc.StartAttempt(context.Background(), 1, 42)
	assert.ErrorIs(t, err, util.ErrQuizNotPublished)
}

func TestStartAttemptSetsDeadline(t *testing.T) {
	quiz := testQuiz()
	quiz.TimeLimit = 30
	svc, _, _ := newSessionFixture(quiz)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return t0 }

	view, err := svc.StartAttempt(context.Background(), 1, 42)
	require.NoError(t, err)
	require.NotNil(t, view.Deadline)
	assert.Equal(t, t0.Add(30*time.Minute), *view.Deadline)
	require.NotNil(t, view.RemainingSeconds)
	assert.Equal(t, 1800, *view.RemainingSeconds)
}

func TestRecordAnswerShapeValidation(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)

	// 匹配题拒绝单值
	err = svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SingleAnswer("x"))
	assert.ErrorIs(t, err, util.ErrValidation)

	// 单选题拒绝集合
	err = svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SetAnswer("B"))
	assert.ErrorIs(t, err, util.ErrValidation)

	// 形状正确则可反复覆盖
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("A")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	got, err := svc.GetSession(ctx, view.AttemptID, 42)
	require.NoError(t, err)
	assert.Equal(t, model.SingleAnswer("B"), got.Answered[1])
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)

	err = svc.RecordAnswer(ctx, view.AttemptID, 42, 999, model.SingleAnswer("B"))
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestSubmitAttemptRequiresAllAnswers(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	_, err = svc.SubmitAttempt(ctx, view.AttemptID, 42)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestSubmitAttemptGradesAndReleasesMarker(t *testing.T) {
	svc, _, store := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x")))

	attempt, err := svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptGraded, attempt.Status)
	assert.Equal(t, 66.7, attempt.Score)
	assert.False(t, attempt.Passed)
	assert.False(t, attempt.AutoSubmitted)
	require.NotNil(t, attempt.GradedAt)
	assert.Len(t, attempt.Answers, 2)
	assert.Empty(t, store.active)

	// 评分后可以立即开始新的会话
	_, err = svc.StartAttempt(ctx, 1, 42)
	assert.NoError(t, err)
}

func TestSubmitAttemptIdempotent(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x", "y")))

	first, err := svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)

	second, err := svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.GradedAt, second.GradedAt)
}

func TestGradingUsesStartTimeSnapshot(t *testing.T) {
	quiz := testQuiz()
	svc, _, _ := newSessionFixture(quiz)
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x", "y")))

	// 开考后目录里的标准答案被改动，评分仍按开考快照
	quiz.Questions[0].CorrectAnswer = []byte(`"C"`)

	attempt, err := svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)
	assert.Equal(t, 100.0, attempt.Score)
}

func TestDeadlineAutoSubmitOnRecord(t *testing.T) {
	quiz := testQuiz()
	quiz.TimeLimit = 30
	svc, attempts, _ := newSessionFixture(quiz)
	ctx := context.Background()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return current }

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	// 时钟越过截止时间后作答：先自动结算，再返回超时错误
	current = current.Add(31 * time.Minute)
	err = svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x"))
	assert.ErrorIs(t, err, util.ErrValidation)

	graded, err := attempts.FindWithAnswers(view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, graded.Status)
	assert.True(t, graded.AutoSubmitted)
	// 时长按截止时间封顶
	assert.Equal(t, 1800, graded.TimeSpentSeconds)
	// 只有截止前记录的答案参与评分
	assert.Equal(t, 33.3, graded.Score)
}

func TestSubmitExpiredSweep(t *testing.T) {
	quiz := testQuiz()
	quiz.TimeLimit = 30
	svc, attempts, _ := newSessionFixture(quiz)
	ctx := context.Background()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return current }

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	assert.Equal(t, 0, svc.SubmitExpired(ctx))

	current = current.Add(45 * time.Minute)
	assert.Equal(t, 1, svc.SubmitExpired(ctx))

	graded, err := attempts.FindByID(view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, graded.Status)
	assert.True(t, graded.AutoSubmitted)

	// 已结算的会话不会被重复巡检
	assert.Equal(t, 0, svc.SubmitExpired(ctx))
}

func TestFinalizeDoesNotOverwriteGradedAttempt(t *testing.T) {
	quiz := testQuiz()
	quiz.TimeLimit = 30
	svc, attempts, _ := newSessionFixture(quiz)
	ctx := context.Background()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return current }

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x", "y")))

	// 巡检此前读到的仍为 in_progress 的快照
	current = current.Add(29 * time.Minute)
	stale, err := attempts.FindByID(view.AttemptID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptInProgress, stale.Status)

	// 手工提交抢先结算为满分，草稿随之清空
	submitted, err := svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)
	require.Equal(t, 100.0, submitted.Score)

	// 巡检随后用过期快照结算：必须放弃重评，返回既有成绩
	result, err := svc.finalize(ctx, stale, true)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Score)

	graded, err := attempts.FindWithAnswers(view.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, graded.Score)
	assert.False(t, graded.AutoSubmitted)
	assert.Len(t, graded.Answers, 2)
}

func TestSweepReapsStaleUntimedSessions(t *testing.T) {
	svc, attempts, store := newSessionFixture(testQuiz())
	ctx := context.Background()

	current := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return current }

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	// 会话窗口内巡检不动它
	current = current.Add(90 * time.Minute)
	svc.SubmitExpired(ctx)
	_, err = attempts.FindByID(view.AttemptID)
	require.NoError(t, err)

	// 刚开始的新会话不受影响
	fresh, err := svc.StartAttempt(ctx, 1, 43)
	require.NoError(t, err)

	// 超过会话窗口后按放弃回收：记录删除、在答标记释放
	current = current.Add(31 * time.Minute)
	svc.SubmitExpired(ctx)

	_, err = attempts.FindByID(view.AttemptID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = attempts.FindByID(fresh.AttemptID)
	assert.NoError(t, err)

	// 回收后可以重新开考
	_, err = svc.StartAttempt(ctx, 1, 42)
	assert.NoError(t, err)
	assert.Len(t, store.active, 2)
}

func TestAbandonAttemptLeavesNoRecord(t *testing.T) {
	svc, attempts, store := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))

	require.NoError(t, svc.AbandonAttempt(ctx, view.AttemptID, 42))

	assert.Empty(t, attempts.attempts)
	assert.Empty(t, store.active)

	// 放弃后可以重新开始
	_, err = svc.StartAttempt(ctx, 1, 42)
	assert.NoError(t, err)
}

func TestAbandonGradedAttemptRejected(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 1, model.SingleAnswer("B")))
	require.NoError(t, svc.RecordAnswer(ctx, view.AttemptID, 42, 2, model.SetAnswer("x", "y")))
	_, err = svc.SubmitAttempt(ctx, view.AttemptID, 42)
	require.NoError(t, err)

	err = svc.AbandonAttempt(ctx, view.AttemptID, 42)
	assert.ErrorIs(t, err, util.ErrAttemptGraded)
}

func TestSessionHiddenFromOtherLearners(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())
	ctx := context.Background()

	view, err := svc.StartAttempt(ctx, 1, 42)
	require.NoError(t, err)

	_, err = svc.GetSession(ctx, view.AttemptID, 99)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestStudentViewOmitsCorrectAnswers(t *testing.T) {
	svc, _, _ := newSessionFixture(testQuiz())

	view, err := svc.StartAttempt(context.Background(), 1, 42)
	require.NoError(t, err)

	for _, q := range view.Questions {
		assert.NotEmpty(t, q.Prompt)
		assert.NotZero(t, q.Points)
	}
}
