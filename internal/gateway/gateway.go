// Package gateway wraps the remote content-generation endpoints. Each
// operation is a single request/response call with a fixed shape contract:
// responses are decoded into typed structs and validated at this boundary, so
// malformed remote data never travels deeper into the system. No retries, no
// caching, no idempotency keys; callers may repeat any call safely.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dental-mentor-service/internal/domain"
	"github.com/google/uuid"
)

// ErrGenerationFailed marks a response that did not match the documented
// shape. Callers are expected to catch it and show a generic retry message.
var ErrGenerationFailed = errors.New("generation failed")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type quizResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Questions   []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer int      `json:"correctAnswer"`
		Explanation   string   `json:"explanation"`
		Points        int      `json:"points"`
	} `json:"questions"`
}

// GenerateQuiz requests a quiz for a topic and difficulty. The returned quiz
// carries exactly the questions the remote produced, with local IDs assigned.
func (c *Client) GenerateQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error) {
	query := url.Values{
		"topic":         {topic},
		"difficulty":    {difficulty},
		"num_questions": {strconv.Itoa(numQuestions)},
	}
	var resp quizResponse
	if err := c.get(ctx, "generate_quiz", query, &resp); err != nil {
		return domain.Quiz{}, fmt.Errorf("generate quiz: %w", err)
	}

	if len(resp.Questions) == 0 {
		return domain.Quiz{}, fmt.Errorf("generate quiz: empty question set: %w", ErrGenerationFailed)
	}
	quiz := domain.Quiz{
		ID:          uuid.NewString(),
		Title:       resp.Title,
		Description: resp.Description,
	}
	for i, q := range resp.Questions {
		if q.Question == "" || len(q.Options) == 0 || q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return domain.Quiz{}, fmt.Errorf("generate quiz: malformed question %d: %w", i, ErrGenerationFailed)
		}
		points := q.Points
		if points == 0 {
			points = 1
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Prompt:       q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectAnswer,
			Explanation:  q.Explanation,
			Points:       points,
		})
	}
	return quiz, nil
}

type caseResponse struct {
	Title            string   `json:"title"`
	PatientHistory   string   `json:"patientHistory"`
	ClinicalFindings []string `json:"clinicalFindings"`
	Questions        []struct {
		Question    string `json:"question"`
		Explanation string `json:"explanation"`
		Points      int    `json:"points"`
	} `json:"questions"`
}

// GenerateCaseStudy requests a clinical case. Case questions are open-ended:
// no options, graded remotely.
func (c *Client) GenerateCaseStudy(ctx context.Context, topic, difficulty string) (domain.CaseStudy, error) {
	query := url.Values{"topic": {topic}, "difficulty": {difficulty}}
	var resp caseResponse
	if err := c.get(ctx, "generate_case", query, &resp); err != nil {
		return domain.CaseStudy{}, fmt.Errorf("generate case: %w", err)
	}
	if resp.Title == "" || len(resp.Questions) == 0 {
		return domain.CaseStudy{}, fmt.Errorf("generate case: malformed response: %w", ErrGenerationFailed)
	}

	cs := domain.CaseStudy{
		Title:            resp.Title,
		PatientHistory:   resp.PatientHistory,
		ClinicalFindings: resp.ClinicalFindings,
	}
	for i, q := range resp.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		cs.Questions = append(cs.Questions, domain.Question{
			ID:          fmt.Sprintf("q%d", i+1),
			Prompt:      q.Question,
			Explanation: q.Explanation,
			Points:      points,
		})
	}
	return cs, nil
}

// ValidateAnswer grades a free-form answer remotely. Any failure degrades to
// a safe default result carrying an inline message; it never returns an error
// the UI would have to special-case.
func (c *Client) ValidateAnswer(ctx context.Context, questionID, answer, studentID string) domain.EvaluationResult {
	body := map[string]string{
		"questionId": questionID,
		"answer":     answer,
		"studentId":  studentID,
	}
	var resp domain.EvaluationResult
	if err := c.post(ctx, "validate_answer", body, &resp); err != nil {
		return domain.EvaluationResult{Correct: false, Score: 0, Feedback: "Error validating answer. Please try again."}
	}
	return resp
}

// AnalyzePreparation submits tooth preparation geometry for review.
func (c *Client) AnalyzePreparation(ctx context.Context, meshData json.RawMessage, measurements map[string]float64) string {
	body := map[string]any{
		"meshData":     meshData,
		"measurements": measurements,
	}
	var resp struct {
		Feedback string `json:"feedback"`
	}
	if err := c.post(ctx, "analyze_prep", body, &resp); err != nil || resp.Feedback == "" {
		return "Preparation analysis is unavailable right now. Please try again."
	}
	return resp.Feedback
}

// RecommendMaterial asks for a restorative material suggestion for a case.
func (c *Client) RecommendMaterial(ctx context.Context, caseID string) string {
	var resp struct {
		Recommendation string `json:"recommendation"`
	}
	if err := c.get(ctx, "recommend_material", url.Values{"caseId": {caseID}}, &resp); err != nil || resp.Recommendation == "" {
		return "Material recommendation is unavailable right now. Please try again."
	}
	return resp.Recommendation
}

// ReviewDesign submits a restoration design for feedback.
func (c *Client) ReviewDesign(ctx context.Context, material string, parameters map[string]any, caseDetails string) string {
	body := map[string]any{
		"material":    material,
		"parameters":  parameters,
		"caseDetails": caseDetails,
	}
	var resp struct {
		Feedback string `json:"feedback"`
	}
	if err := c.post(ctx, "review_design", body, &resp); err != nil || resp.Feedback == "" {
		return "Design review is unavailable right now. Please try again."
	}
	return resp.Feedback
}

// UploadResult is the remote's reaction to an uploaded study document.
type UploadResult struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// UploadDocument streams a file to the generation backend for indexing.
func (c *Client) UploadDocument(ctx context.Context, filename string, file io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResult{}, err
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return UploadResult{Message: "Upload failed. Please try again."}, fmt.Errorf("upload document: %w", err)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.endpoint(path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", ErrGenerationFailed)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + path
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
