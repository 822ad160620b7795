package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dental-mentor-service/internal/domain"
)

func TestGenerateQuizRoundTrip(t *testing.T) {
	correct := []int{1, 0, 2, 3, 1}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_quiz" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("topic") != "Endodontics" || q.Get("difficulty") != "medium" || q.Get("num_questions") != "5" {
			t.Fatalf("unexpected query %v", q)
		}

		type wireQuestion struct {
			Question      string   `json:"question"`
			Options       []string `json:"options"`
			CorrectAnswer int      `json:"correctAnswer"`
			Explanation   string   `json:"explanation"`
			Points        int      `json:"points"`
		}
		questions := make([]wireQuestion, 5)
		for i := range questions {
			questions[i] = wireQuestion{
				Question:      fmt.Sprintf("Question %d", i+1),
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: correct[i],
				Explanation:   "Because.",
				Points:        10,
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":       "Endodontics Review",
			"description": "Root canal fundamentals",
			"questions":   questions,
		})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	quiz, err := client.GenerateQuiz(context.Background(), "Endodontics", "medium", 5)
	if err != nil {
		t.Fatalf("generate quiz: %v", err)
	}

	if quiz.Title != "Endodontics Review" || len(quiz.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d (title %q)", len(quiz.Questions), quiz.Title)
	}
	for i, question := range quiz.Questions {
		if question.CorrectIndex != correct[i] {
			t.Fatalf("question %d: correct index %d, want %d", i, question.CorrectIndex, correct[i])
		}
		if question.Points != 10 {
			t.Fatalf("question %d: points %d, want 10", i, question.Points)
		}
	}
}

func TestGenerateQuizRejectsMalformedPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no questions", `{"title":"t","questions":[]}`},
		{"correct index out of range", `{"title":"t","questions":[{"question":"q","options":["a","b"],"correctAnswer":5}]}`},
		{"empty prompt", `{"title":"t","questions":[{"question":"","options":["a"],"correctAnswer":0}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := New(Config{BaseURL: server.URL})
			_, err := client.GenerateQuiz(context.Background(), "Endodontics", "easy", 1)
			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("expected ErrGenerationFailed, got %v", err)
			}
		})
	}
}

func TestGenerateCaseStudy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_case" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":            "Cracked Tooth",
			"patientHistory":   "45yo, pain on biting",
			"clinicalFindings": []string{"fracture line", "positive bite test"},
			"questions": []map[string]any{
				{"question": "What is the likely diagnosis?", "explanation": "Cracked tooth syndrome.", "points": 20},
			},
		})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	cs, err := client.GenerateCaseStudy(context.Background(), "Restorative", "hard")
	if err != nil {
		t.Fatalf("generate case: %v", err)
	}
	if cs.Title != "Cracked Tooth" || len(cs.ClinicalFindings) != 2 || len(cs.Questions) != 1 {
		t.Fatalf("unexpected case study %+v", cs)
	}
	if cs.Questions[0].Points != 20 {
		t.Fatalf("expected points carried over, got %d", cs.Questions[0].Points)
	}
}

func TestValidateAnswerSafeDefaultOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	result := client.ValidateAnswer(context.Background(), "q1", "pulp", "s1")
	if result.Correct || result.Score != 0 {
		t.Fatalf("expected safe default, got %+v", result)
	}
	if result.Feedback == "" {
		t.Fatalf("safe default must carry an explanatory message")
	}
}

func TestValidateAnswerPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["questionId"] != "q1" || body["studentId"] != "s1" {
			t.Fatalf("unexpected body %v", body)
		}
		_ = json.NewEncoder(w).Encode(domain.EvaluationResult{Correct: true, Score: 10, Feedback: "Well done"})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	result := client.ValidateAnswer(context.Background(), "q1", "pulp", "s1")
	if !result.Correct || result.Score != 10 || result.Feedback != "Well done" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFeedbackOpsDegradeToSafeMessages(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1"}) // nothing listens here

	if feedback := client.AnalyzePreparation(context.Background(), nil, map[string]float64{"depth": 1.5}); feedback == "" {
		t.Fatalf("expected fallback feedback")
	}
	if rec := client.RecommendMaterial(context.Background(), "case-1"); rec == "" {
		t.Fatalf("expected fallback recommendation")
	}
	if review := client.ReviewDesign(context.Background(), "zirconia", map[string]any{"thickness": 1.0}, "molar crown"); review == "" {
		t.Fatalf("expected fallback review")
	}
}

func TestUploadDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "notes.txt" {
			t.Fatalf("unexpected filename %s", header.Filename)
		}
		_ = json.NewEncoder(w).Encode(UploadResult{Topic: "Endodontics", Message: "indexed"})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	result, err := client.UploadDocument(context.Background(), "notes.txt", strings.NewReader("root canal notes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Topic != "Endodontics" || result.Message != "indexed" {
		t.Fatalf("unexpected result %+v", result)
	}
}
