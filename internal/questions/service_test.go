package questions

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/upsc-prep/backend/internal/generator"
	"github.com/upsc-prep/backend/internal/models"
	"github.com/upsc-prep/backend/internal/scoring"
)

type fixture struct {
	store   *MemoryStore
	mock    *generator.MockClient
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	mock := generator.NewMockClient()
	gen := generator.New(mock, "mock")
	return &fixture{
		store:   store,
		mock:    mock,
		service: NewService(store, gen, scoring.NewScorer(gen, scoring.DefaultSimilarityMinChars)),
	}
}

func (f *fixture) seed(t *testing.T, qs ...models.ExamQuestion) []models.ExamQuestion {
	t.Helper()
	if err := f.store.InsertQuestions(context.Background(), qs); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return qs
}

func curated(text string, year int, subject string, exam models.ExamType, qt models.QuestionType) models.ExamQuestion {
	q := models.ExamQuestion{
		QuestionText:       text,
		Year:               year,
		Subject:            subject,
		ExamType:           exam,
		QuestionType:       qt,
		Marks:              10,
		IsDatabaseQuestion: true,
	}
	if qt == models.QuestionMCQ {
		q.Options = pq.StringArray{"Option one", "Option two", "Option three", "Option four"}
		q.Marks = 2
	}
	return q
}

func owned(text string, owner uuid.UUID) models.ExamQuestion {
	q := curated(text, 2022, "History", models.ExamMains, models.QuestionDescriptive)
	q.IsDatabaseQuestion = false
	q.UserID = &owner
	return q
}

func ids(qs []models.ExamQuestion) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(qs))
	for _, q := range qs {
		out[q.ID] = true
	}
	return out
}

// ── Search ──────────────────────────────────────────────

func TestSearch_Visibility(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	qs := f.seed(t,
		curated("Curated", 2020, "Polity", models.ExamMains, models.QuestionDescriptive),
		owned("Alice's", alice),
		owned("Bob's", bob),
	)
	ctx := context.Background()

	tests := []struct {
		name   string
		params models.SearchParams
		viewer uuid.UUID
		want   []uuid.UUID
	}{
		{"anonymous", models.SearchParams{}, uuid.Nil, []uuid.UUID{qs[0].ID}},
		{"anonymous mine", models.SearchParams{UserQuestionsOnly: true}, uuid.Nil, []uuid.UUID{qs[0].ID}},
		{"alice", models.SearchParams{}, alice, []uuid.UUID{qs[0].ID, qs[1].ID}},
		{"alice mine", models.SearchParams{UserQuestionsOnly: true}, alice, []uuid.UUID{qs[1].ID}},
		{"bob", models.SearchParams{}, bob, []uuid.UUID{qs[0].ID, qs[2].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.service.Search(ctx, tt.params, tt.viewer)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := ids(res.Questions)
			if len(got) != len(tt.want) || res.Count != len(tt.want) {
				t.Fatalf("got %d questions (count %d), want %d", len(got), res.Count, len(tt.want))
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("missing question %s", id)
				}
			}
		})
	}
}

func TestSearch_FiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	qs := f.seed(t,
		curated("Federalism", 2016, "Polity", models.ExamMains, models.QuestionDescriptive),
		curated("Judicial review", 2019, "Polity", models.ExamMains, models.QuestionDescriptive),
		curated("Preamble", 2019, "Polity", models.ExamPrelims, models.QuestionMCQ),
		curated("Emergency", 2012, "Polity", models.ExamMains, models.QuestionDescriptive),
		curated("Monsoon", 2018, "Geography", models.ExamMains, models.QuestionDescriptive),
	)

	res, err := f.service.Search(context.Background(), models.SearchParams{
		Subject:   "Polity",
		ExamType:  models.ExamMains,
		YearStart: intPtr(2015),
		YearEnd:   intPtr(2020),
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Count != 2 || len(res.Questions) != 2 {
		t.Fatalf("count = %d, len = %d, want 2", res.Count, len(res.Questions))
	}
	if res.Questions[0].ID != qs[1].ID || res.Questions[1].ID != qs[0].ID {
		t.Errorf("order = %s, %s, want 2019 before 2016", res.Questions[0].QuestionText, res.Questions[1].QuestionText)
	}
	if res.Limit != models.DefaultSearchLimit || res.Offset != 0 {
		t.Errorf("paging = %d/%d, want defaults", res.Limit, res.Offset)
	}
}

func TestSearch_KeywordsAnyMatch(t *testing.T) {
	f := newFixture(t)
	a := curated("Rivers", 2018, "Geography", models.ExamMains, models.QuestionDescriptive)
	a.Keywords = pq.StringArray{"rivers", "water"}
	b := curated("Soils", 2018, "Geography", models.ExamMains, models.QuestionDescriptive)
	b.Keywords = pq.StringArray{"soil"}
	c := curated("Climate", 2018, "Geography", models.ExamMains, models.QuestionDescriptive)
	f.seed(t, a, b, c)

	res, err := f.service.Search(context.Background(), models.SearchParams{Keywords: []string{"water", "soil", "Rivers"}}, uuid.Nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Count != 2 {
		t.Errorf("count = %d, want 2 (any keyword, case-sensitive)", res.Count)
	}
}

func TestSearch_PagingKeepsTotal(t *testing.T) {
	f := newFixture(t)
	var qs []models.ExamQuestion
	for year := 2001; year <= 2010; year++ {
		qs = append(qs, curated("Q", year, "History", models.ExamPrelims, models.QuestionDescriptive))
	}
	f.seed(t, qs...)

	res, err := f.service.Search(context.Background(), models.SearchParams{
		SortBy: models.SortByYear, SortOrder: models.SortAsc, Limit: 3, Offset: 3,
	}, uuid.Nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Count != 10 || len(res.Questions) != 3 {
		t.Fatalf("count = %d, len = %d, want 10/3", res.Count, len(res.Questions))
	}
	if res.Questions[0].Year != 2004 {
		t.Errorf("first year = %d, want 2004", res.Questions[0].Year)
	}

	res, _ = f.service.Search(context.Background(), models.SearchParams{Limit: 500}, uuid.Nil)
	if res.Limit != models.MaxSearchLimit {
		t.Errorf("limit = %d, want clamp to %d", res.Limit, models.MaxSearchLimit)
	}
}

func TestSearch_YearFilters(t *testing.T) {
	f := newFixture(t)
	for year := 2015; year <= 2020; year++ {
		f.seed(t, curated("Q", year, "Economy", models.ExamMains, models.QuestionDescriptive))
	}

	tests := []struct {
		name   string
		params models.SearchParams
		want   []int
	}{
		{"inverted range", models.SearchParams{YearStart: intPtr(2019), YearEnd: intPtr(2016)}, nil},
		{"exact year overrides range", models.SearchParams{Year: intPtr(2017), YearStart: intPtr(2019), YearEnd: intPtr(2020)}, []int{2017}},
		{"open-ended range", models.SearchParams{YearStart: intPtr(2018)}, []int{2020, 2019, 2018}},
		{"upper bound only", models.SearchParams{YearEnd: intPtr(2015)}, []int{2015}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.service.Search(context.Background(), tt.params, uuid.Nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if res.Count != len(tt.want) || len(res.Questions) != len(tt.want) {
				t.Fatalf("count = %d, len = %d, want %d", res.Count, len(res.Questions), len(tt.want))
			}
			for i, year := range tt.want {
				if res.Questions[i].Year != year {
					t.Errorf("questions[%d].Year = %d, want %d", i, res.Questions[i].Year, year)
				}
			}
		})
	}
}

func TestSearch_TieBreakIsStable(t *testing.T) {
	f := newFixture(t)
	var qs []models.ExamQuestion
	for i := 0; i < 8; i++ {
		qs = append(qs, curated("Same year", 2020, "Economy", models.ExamPrelims, models.QuestionDescriptive))
	}
	f.seed(t, qs...)

	first, _ := f.service.Search(context.Background(), models.SearchParams{}, uuid.Nil)
	second, _ := f.service.Search(context.Background(), models.SearchParams{}, uuid.Nil)
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("position %d differs between identical searches", i)
		}
	}
}

func TestGetQuestion_HiddenFromOthers(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	qs := f.seed(t, owned("Private", alice))

	if _, err := f.service.GetQuestion(context.Background(), qs[0].ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user err = %v, want ErrNotFound", err)
	}
	if _, err := f.service.GetQuestion(context.Background(), qs[0].ID, uuid.Nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("anonymous err = %v, want ErrNotFound", err)
	}
	if _, err := f.service.GetQuestion(context.Background(), qs[0].ID, alice); err != nil {
		t.Errorf("owner err = %v", err)
	}
}

func TestListSubjects(t *testing.T) {
	f := newFixture(t)
	q := curated("Legacy", 2001, "Art & Culture", models.ExamPrelims, models.QuestionDescriptive)
	f.seed(t, q, curated("x", 2001, "Polity", models.ExamPrelims, models.QuestionDescriptive))

	subjects, err := f.service.ListSubjects(context.Background())
	if err != nil {
		t.Fatalf("ListSubjects: %v", err)
	}
	if len(subjects) != len(models.Subjects)+1 {
		t.Fatalf("subjects = %v", subjects)
	}
	if subjects[len(subjects)-1] != "Art & Culture" {
		t.Errorf("last subject = %q, want stored extra", subjects[len(subjects)-1])
	}
}

// ── User questions ──────────────────────────────────────

func TestAddQuestion(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	req := models.CreateQuestionRequest{
		QuestionText: "  Discuss the role of the Finance Commission.  ",
		Year:         2021,
		Subject:      "Polity",
		ExamType:     models.ExamMains,
		QuestionType: models.QuestionDescriptive,
		Keywords:     []string{"finance", "finance", " fiscal "},
		Options:      []string{"ignored"},
	}

	if _, err := f.service.AddQuestion(ctx, uuid.Nil, req); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous err = %v, want ErrAuthRequired", err)
	}

	q, err := f.service.AddQuestion(ctx, owner, req)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if q.IsDatabaseQuestion || !q.OwnedBy(owner) {
		t.Errorf("question not owned by caller: %+v", q)
	}
	if q.Marks != 1 || len(q.Options) != 0 || len(q.Keywords) != 2 {
		t.Errorf("sanitized = marks %d options %v keywords %v", q.Marks, q.Options, q.Keywords)
	}

	req.Subject = "Astrology"
	_, err = f.service.AddQuestion(ctx, owner, req)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !IsClientError(err) {
		t.Error("validation error should be a client error")
	}
}

func TestDeleteQuestion(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()
	qs := f.seed(t,
		curated("Curated", 2020, "Polity", models.ExamMains, models.QuestionDescriptive),
		owned("Alice's", alice),
	)
	ctx := context.Background()

	if err := f.service.DeleteQuestion(ctx, qs[0].ID, alice); !errors.Is(err, ErrForbidden) {
		t.Errorf("delete curated err = %v, want ErrForbidden", err)
	}
	if err := f.service.DeleteQuestion(ctx, qs[1].ID, bob); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete other's err = %v, want ErrNotFound", err)
	}
	if err := f.service.DeleteQuestion(ctx, qs[1].ID, alice); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if f.store.CountQuestions() != 1 {
		t.Errorf("questions = %d, want 1", f.store.CountQuestions())
	}
}

// ── Submissions ─────────────────────────────────────────

func TestSubmitAnswer_MCQ(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	qs := f.seed(t, curated("Which article?", 2019, "Polity", models.ExamPrelims, models.QuestionMCQ))
	ctx := context.Background()

	resp, err := f.service.SubmitAnswer(ctx, user, qs[0].ID, "a")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if resp.ReferenceAnswer != "A" {
		t.Errorf("reference = %q, want A", resp.ReferenceAnswer)
	}
	if *resp.Answer.SimilarityScore != 1 || *resp.Answer.AwardedMarks != 2 {
		t.Errorf("score = %v/%v, want 1/2", *resp.Answer.SimilarityScore, *resp.Answer.AwardedMarks)
	}
	if !strings.Contains(resp.Feedback, "Correct!") || !strings.Contains(resp.Feedback, "option A: Option one") {
		t.Errorf("feedback = %q", resp.Feedback)
	}

	firstID := resp.Answer.ID
	resp, err = f.service.SubmitAnswer(ctx, user, qs[0].ID, "C")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resp.Answer.ID != firstID {
		t.Errorf("resubmit created a new answer %s, want %s", resp.Answer.ID, firstID)
	}
	if *resp.Answer.AwardedMarks != 0 || !strings.Contains(resp.Feedback, "Incorrect") {
		t.Errorf("resubmit = %v marks, feedback %q", *resp.Answer.AwardedMarks, resp.Feedback)
	}
	if f.store.CountAnswers() != 1 {
		t.Errorf("answers = %d, want 1", f.store.CountAnswers())
	}

	stored, err := f.service.MyAnswer(ctx, user, qs[0].ID)
	if err != nil {
		t.Fatalf("MyAnswer: %v", err)
	}
	if stored.AnswerText != "C" {
		t.Errorf("stored answer = %q, want latest", stored.AnswerText)
	}
}

func TestSubmitAnswer_Descriptive(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	qs := f.seed(t, curated("Discuss cooperative federalism in India.", 2019, "Polity", models.ExamMains, models.QuestionDescriptive))

	resp, err := f.service.SubmitAnswer(context.Background(), user, qs[0].ID,
		"Cooperative federalism means the union and states work together through bodies like the GST Council.")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if math.Abs(*resp.Answer.SimilarityScore-0.6) > 1e-9 || math.Abs(*resp.Answer.AwardedMarks-6) > 1e-9 {
		t.Errorf("score = %v/%v, want 0.6/6", *resp.Answer.SimilarityScore, *resp.Answer.AwardedMarks)
	}
	if resp.ScoringUnavailable {
		t.Error("ScoringUnavailable = true")
	}
	if f.mock.Calls() != 2 {
		t.Errorf("llm calls = %d, want reference + similarity", f.mock.Calls())
	}
}

func TestSubmitAnswer_Rejections(t *testing.T) {
	f := newFixture(t)
	qs := f.seed(t, curated("Q", 2019, "Polity", models.ExamPrelims, models.QuestionMCQ))
	ctx := context.Background()

	if _, err := f.service.SubmitAnswer(ctx, uuid.Nil, qs[0].ID, "A"); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("anonymous err = %v, want ErrAuthRequired", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, uuid.New(), qs[0].ID, "   "); !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("blank err = %v, want ErrEmptyAnswer", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, uuid.New(), uuid.New(), "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing question err = %v, want ErrNotFound", err)
	}
	if f.store.CountAnswers() != 0 || f.mock.Calls() != 0 {
		t.Errorf("rejected submissions wrote %d answers and made %d llm calls", f.store.CountAnswers(), f.mock.Calls())
	}
}

func TestSubmitAnswer_GeneratorFailure(t *testing.T) {
	f := newFixture(t)
	qs := f.seed(t, curated("Q", 2019, "Polity", models.ExamMains, models.QuestionDescriptive))
	f.mock.Reply = func(string, string) (string, error) { return "", errors.New("quota exceeded") }

	_, err := f.service.SubmitAnswer(context.Background(), uuid.New(), qs[0].ID, "answer")
	if !errors.Is(err, ErrModelAnswerFailed) {
		t.Fatalf("err = %v, want ErrModelAnswerFailed", err)
	}
	if f.store.CountAnswers() != 0 {
		t.Errorf("answers = %d, want nothing written", f.store.CountAnswers())
	}
}

func TestSubmitAnswer_SimilarityDown(t *testing.T) {
	f := newFixture(t)
	qs := f.seed(t, curated("Evaluate the Green Revolution.", 2017, "Economy", models.ExamMains, models.QuestionDescriptive))
	f.mock.Reply = func(system, _ string) (string, error) {
		if system == generator.SimilaritySystemPrompt {
			return "", errors.New("connection reset")
		}
		return strings.Repeat("The Green Revolution raised yields but strained groundwater. ", 3), nil
	}

	resp, err := f.service.SubmitAnswer(context.Background(), uuid.New(), qs[0].ID,
		"It made India self-sufficient in food grains while causing regional inequality.")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !resp.ScoringUnavailable {
		t.Error("ScoringUnavailable = false, want true")
	}
	if *resp.Answer.SimilarityScore != 0 || *resp.Answer.AwardedMarks != 0 {
		t.Errorf("score = %v/%v, want 0/0", *resp.Answer.SimilarityScore, *resp.Answer.AwardedMarks)
	}
	if f.store.CountAnswers() != 1 {
		t.Errorf("answers = %d, want the answer saved", f.store.CountAnswers())
	}
}

func TestModelAnswer(t *testing.T) {
	f := newFixture(t)
	alice := uuid.New()
	qs := f.seed(t,
		curated("Discuss federalism.", 2019, "Polity", models.ExamMains, models.QuestionDescriptive),
		owned("Private", alice),
	)
	ctx := context.Background()

	answer, err := f.service.ModelAnswer(ctx, qs[0].ID, uuid.Nil)
	if err != nil {
		t.Fatalf("ModelAnswer: %v", err)
	}
	if !strings.Contains(answer, "Polity") {
		t.Errorf("answer = %q, want topic framed", answer)
	}
	if _, err := f.service.ModelAnswer(ctx, qs[1].ID, uuid.Nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("hidden question err = %v, want ErrNotFound", err)
	}
}

func TestMyAnswers(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	qs := f.seed(t,
		curated("Q1", 2019, "Polity", models.ExamPrelims, models.QuestionMCQ),
		curated("Q2", 2019, "Polity", models.ExamPrelims, models.QuestionMCQ),
	)
	ctx := context.Background()

	if _, err := f.service.SubmitAnswer(ctx, user, qs[0].ID, "B"); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	answers, err := f.service.MyAnswers(ctx, user, []uuid.UUID{qs[0].ID, qs[1].ID})
	if err != nil {
		t.Fatalf("MyAnswers: %v", err)
	}
	if len(answers) != 1 || answers[qs[0].ID].AnswerText != "B" {
		t.Errorf("answers = %+v", answers)
	}

	others, _ := f.service.MyAnswers(ctx, uuid.New(), []uuid.UUID{qs[0].ID})
	if len(others) != 0 {
		t.Errorf("another user sees %d answers", len(others))
	}

	if _, err := f.service.MyAnswer(ctx, user, qs[1].ID); !errors.Is(err, ErrAnswerNotFound) {
		t.Errorf("unanswered err = %v, want ErrAnswerNotFound", err)
	}
}
