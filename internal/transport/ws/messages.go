package ws

import (
	"github.com/p-n-ai/statquiz/internal/answer"
	"github.com/p-n-ai/statquiz/internal/quiz"
	"github.com/p-n-ai/statquiz/internal/session"
)

// Client message types.
const (
	TypeStart   = "start"
	TypeGuess   = "guess"
	TypeForfeit = "forfeit"
)

// Server message types.
const (
	TypeQuiz     = "quiz"
	TypeState    = "state"
	TypeTick     = "tick"
	TypeComplete = "complete"
	TypeError    = "error"
)

// ClientMessage is anything a player sends.
type ClientMessage struct {
	Type         string `json:"type"`
	Topic        string `json:"topic,omitempty"`
	MaxQuestions int    `json:"maxQuestions,omitempty"`
	TimeLimit    int    `json:"timeLimit,omitempty"`
	Text         string `json:"text,omitempty"`
}

// Envelope wraps every server message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Slot is an answer with the player hidden.
type Slot struct {
	Year   string  `json:"year"`
	Team   string  `json:"team"`
	Points float64 `json:"points"`
}

// QuizView announces a new quiz.
type QuizView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Provider    string `json:"provider,omitempty"`
	TimeLimit   int    `json:"timeLimit"`
	Slots       []Slot `json:"slots"`
}

// Reveal is a matched answer.
type Reveal struct {
	Index int `json:"index"`
	answer.Record
}

// StateView reports the effect of one guess.
type StateView struct {
	Input     string   `json:"input"`
	Changed   bool     `json:"changed"`
	Matched   []Reveal `json:"matched"`
	Score     int      `json:"score"`
	Total     int      `json:"total"`
	Remaining int      `json:"remaining"`
}

// TickView reports the clock.
type TickView struct {
	Remaining int `json:"remaining"`
}

// CompleteView ends a quiz and reveals every answer.
type CompleteView struct {
	Reason   session.EndReason `json:"reason"`
	Score    int               `json:"score"`
	Total    int               `json:"total"`
	Found    []int             `json:"found"`
	Answers  []answer.Record   `json:"answers"`
	ResultID string            `json:"resultId,omitempty"`
}

// ErrorView reports a failed request.
type ErrorView struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func quizView(q *quiz.Quiz) QuizView {
	slots := make([]Slot, len(q.Answers))
	set := q.Set()
	for i, r := range set.Records() {
		slots[i] = Slot{Year: r.Year, Team: r.Team, Points: r.StatValue}
	}
	return QuizView{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Source:      q.Source,
		Provider:    q.Provider,
		TimeLimit:   q.TimeLimit,
		Slots:       slots,
	}
}
