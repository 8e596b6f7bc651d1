package generator

import (
	"errors"
	"testing"
)

func TestParseOptionLetter(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"B", "B"},
		{"  c", "C"},
		{"B. Article 32", "B"},
		{"**D**", "D"},
		{"(A)", "A"},
		{"Option C", "C"},
		{"The correct answer is B.", "B"},
		{"Answer: d", "D"},
		{"", ""},
		{"42", ""},
	}
	for _, tt := range tests {
		if got := ParseOptionLetter(tt.reply); got != tt.want {
			t.Errorf("ParseOptionLetter(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply  string
		want   float64
		wantOK bool
	}{
		{"Score: 7\nExplanation: solid", 7, true},
		{"score:8.5 out of 10", 8.5, true},
		{"Final Score:   3.", 3, true},
		{"No score here", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseScore(tt.reply)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseScore(%q) = %v, %v, want %v, %v", tt.reply, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		maxMarks int
		wantSim  float64
		wantErr  bool
	}{
		{"json", `{"similarity_score": 0.8, "awarded_marks": 8, "feedback": "ok"}`, 10, 0.8, false},
		{"fenced json", "```json\n{\"similarity_score\": 0.5}\n```", 10, 0.5, false},
		{"json with prose", "Here you go: {\"similarity_score\": 0.25} thanks", 4, 0.25, false},
		{"marks only", `{"awarded_marks": 6}`, 10, 0.6, false},
		{"clamped", `{"similarity_score": 3}`, 10, 1, false},
		{"score line", "Score: 12\nExplanation: good", 15, 0.8, false},
		{"garbage", "I cannot grade this.", 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSimilarity(tt.reply, tt.maxMarks)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("err = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := got.SimilarityScore - tt.wantSim; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("similarity = %v, want %v", got.SimilarityScore, tt.wantSim)
			}
			wantMarks := tt.wantSim * float64(tt.maxMarks)
			if diff := got.AwardedMarks - wantMarks; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("awarded = %v, want %v", got.AwardedMarks, wantMarks)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{}\n```", "{}"},
		{"```\nA\n```", "A"},
		{"  plain  ", "plain"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
